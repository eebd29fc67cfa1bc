package research

import "github.com/gliderlab/scholarscout/storage"

// Verdict values used by the extraction and confirmation prompts.
const (
	Yes       = "yes"
	No        = "no"
	Uncertain = "uncertain"
)

// Professor is one faculty name and the page it was first seen on.
type Professor struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// Paper is one research output attributed to a professor.
type Paper struct {
	Type              string `json:"type"`
	Value             string `json:"value"`
	PaperBody         string `json:"paper_body,omitempty"`
	Link              string `json:"link,omitempty"`
	NameConfirm       string `json:"name_confirm,omitempty"`
	SchoolConfirm     string `json:"school_confirm,omitempty"`
	DepartmentConfirm string `json:"department_confirm,omitempty"`
	PaperConfirm      string `json:"paper_confirm,omitempty"`
	Confirm           string `json:"confirm,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

// IndexedPaper is a Paper tagged with its position in the list sent to the
// model, so answers can be joined back to the source records.
type IndexedPaper struct {
	Index int `json:"index"`
	Paper
}

// indexPapers numbers papers by position, keeping only what brief projects.
func indexPapers(papers []Paper, brief func(Paper) Paper) []IndexedPaper {
	out := make([]IndexedPaper, len(papers))
	for i, p := range papers {
		out[i] = IndexedPaper{Index: i, Paper: brief(p)}
	}
	return out
}

// CombineByIndex joins model items to sources by index. Every non-empty
// source field overrides the model's value; items with an unknown index are
// kept as the model returned them.
func CombineByIndex(items []IndexedPaper, sources []Paper) []Paper {
	out := make([]Paper, 0, len(items))
	for _, item := range items {
		merged := item.Paper
		if item.Index >= 0 && item.Index < len(sources) {
			merged.overlay(sources[item.Index])
		}
		out = append(out, merged)
	}
	return out
}

func (p *Paper) overlay(src Paper) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.Type, src.Type)
	set(&p.Value, src.Value)
	set(&p.PaperBody, src.PaperBody)
	set(&p.Link, src.Link)
	set(&p.NameConfirm, src.NameConfirm)
	set(&p.SchoolConfirm, src.SchoolConfirm)
	set(&p.DepartmentConfirm, src.DepartmentConfirm)
	set(&p.PaperConfirm, src.PaperConfirm)
	set(&p.Confirm, src.Confirm)
	set(&p.Reason, src.Reason)
}

// accepted applies the extraction filter: the name must match, the paper
// must be real, and neither affiliation may be denied outright.
func (p Paper) accepted() bool {
	return p.NameConfirm == Yes &&
		p.DepartmentConfirm != No &&
		p.SchoolConfirm != No &&
		p.PaperConfirm == Yes
}

func toStoredProfessors(list []Professor) []storage.Professor {
	out := make([]storage.Professor, len(list))
	for i, p := range list {
		out[i] = storage.Professor{Name: p.Name, Link: p.Link}
	}
	return out
}

func toStoredPapers(list []Paper) []storage.Paper {
	out := make([]storage.Paper, len(list))
	for i, p := range list {
		out[i] = storage.Paper{
			Type:    p.Type,
			Value:   p.Value,
			Body:    p.PaperBody,
			Link:    p.Link,
			Confirm: p.Confirm,
			Reason:  p.Reason,
		}
	}
	return out
}
