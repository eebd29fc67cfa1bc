// Research module - faculty discovery and paper attribution on top of the
// tool-calling agent

package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gliderlab/scholarscout/agent"
	"github.com/gliderlab/scholarscout/storage"
	"github.com/gliderlab/scholarscout/tools"
)

const (
	DefaultResultNum          = 20
	DefaultProfessorResultNum = 10
	DefaultContentSize        = 40000
)

// Transcript steps recorded per run.
const (
	StepExtract = "extract"
	StepDedup   = "dedup"
	StepConfirm = "confirm"
)

// Conversation is the part of *agent.Agent the pipeline drives.
type Conversation interface {
	Converse(ctx context.Context, message string, history []agent.Message, opts ...agent.Option) (string, []agent.Message, error)
	BatchConverse(ctx context.Context, messages []string, histories [][]agent.Message, opts ...agent.Option) ([]string, [][]agent.Message, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, resultNum int) ([]tools.SearchResult, error)
}

type PageFetcher interface {
	FetchAll(ctx context.Context, urls []string) []string
}

// Store persists pipeline output; *storage.Storage satisfies it.
type Store interface {
	SaveProfessors(school, department string, professors []storage.Professor) (int, error)
	SavePapers(school, department, professor string, papers []storage.Paper) error
	SaveTranscript(runID, step string, messages any) error
}

type Config struct {
	Agent   Conversation
	Search  Searcher
	Fetcher PageFetcher
	Store   Store    // optional
	Prompts *Prompts // nil uses DefaultPrompts
	// DataDir receives JSON exports under departments/ and professors/;
	// empty disables export.
	DataDir string

	ResultNum          int // search hits per paper query
	ProfessorResultNum int // search hits per faculty query
	ContentSize        int // runes of page text handed to the model
	Logger             *zap.Logger
}

type Pipeline struct {
	agent   Conversation
	search  Searcher
	fetcher PageFetcher
	store   Store
	prompts *Prompts
	dataDir string

	resultNum          int
	professorResultNum int
	contentSize        int
	logger             *zap.Logger
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Agent == nil || cfg.Search == nil || cfg.Fetcher == nil {
		return nil, errors.New("research: agent, search and fetcher are required")
	}
	p := &Pipeline{
		agent:              cfg.Agent,
		search:             cfg.Search,
		fetcher:            cfg.Fetcher,
		store:              cfg.Store,
		prompts:            cfg.Prompts,
		dataDir:            cfg.DataDir,
		resultNum:          cfg.ResultNum,
		professorResultNum: cfg.ProfessorResultNum,
		contentSize:        cfg.ContentSize,
		logger:             cfg.Logger,
	}
	if p.prompts == nil {
		p.prompts = DefaultPrompts()
	}
	if p.resultNum <= 0 {
		p.resultNum = DefaultResultNum
	}
	if p.professorResultNum <= 0 {
		p.professorResultNum = DefaultProfessorResultNum
	}
	if p.contentSize <= 0 {
		p.contentSize = DefaultContentSize
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

// ProfessorList finds faculty names of a department. Each name keeps the
// first page it appeared on.
func (p *Pipeline) ProfessorList(ctx context.Context, school, department string) ([]Professor, error) {
	query := fmt.Sprintf("%s %s 师资 教授", school, department)
	hits, err := p.search.Search(ctx, query, p.professorResultNum)
	if err != nil {
		return nil, fmt.Errorf("search professors: %w", err)
	}
	links, prompts, err := p.pagePrompts(ctx, hits, func(content string) (string, error) {
		return p.prompts.render(promptExtractProfessor, professorPrompt{
			School: school, Department: department, Content: content,
		})
	})
	if err != nil {
		return nil, err
	}

	professors := []Professor{}
	if len(prompts) > 0 {
		answers, _, err := p.agent.BatchConverse(ctx, prompts, nil, agent.WithoutTools())
		if err != nil {
			return nil, fmt.Errorf("extract professors: %w", err)
		}
		seen := make(map[string]bool)
		for i, answer := range answers {
			var names []string
			if err := ExtractJSON(answer, &names); err != nil {
				p.logger.Warn("unparseable professor list", zap.String("link", links[i]), zap.Error(err))
				continue
			}
			for _, name := range names {
				name = strings.TrimSpace(name)
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				professors = append(professors, Professor{Name: name, Link: links[i]})
			}
		}
	}
	p.logger.Info("professors found",
		zap.String("school", school), zap.String("department", department),
		zap.Int("pages", len(prompts)), zap.Int("professors", len(professors)))

	if p.store != nil {
		added, err := p.store.SaveProfessors(school, department, toStoredProfessors(professors))
		if err != nil {
			return professors, fmt.Errorf("save professors: %w", err)
		}
		p.logger.Debug("professors saved", zap.Int("added", added))
	}
	if p.dataDir != "" {
		path := filepath.Join(p.dataDir, "departments", exportName(school, department))
		if err := writeJSON(path, professors); err != nil {
			return professors, err
		}
	}
	return professors, nil
}

// ProfessorPapers extracts candidate research outputs of one professor from
// search results, keeping those the model attributes to them.
func (p *Pipeline) ProfessorPapers(ctx context.Context, school, department, professor string) ([]Paper, error) {
	papers, _, err := p.professorPapers(ctx, school, department, professor)
	return papers, err
}

func (p *Pipeline) professorPapers(ctx context.Context, school, department, professor string) ([]Paper, [][]agent.Message, error) {
	query := fmt.Sprintf("%s %s %s 论文", school, department, professor)
	hits, err := p.search.Search(ctx, query, p.resultNum)
	if err != nil {
		return nil, nil, fmt.Errorf("search papers: %w", err)
	}
	links, prompts, err := p.pagePrompts(ctx, hits, func(content string) (string, error) {
		return p.prompts.render(promptExtractPaper, paperPrompt{
			School: school, Department: department, Professor: professor, Content: content,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if len(prompts) == 0 {
		return []Paper{}, nil, nil
	}

	answers, transcripts, err := p.agent.BatchConverse(ctx, prompts, nil, agent.WithoutTools())
	if err != nil {
		return nil, transcripts, fmt.Errorf("extract papers: %w", err)
	}
	papers := []Paper{}
	total := 0
	for i, answer := range answers {
		var found []Paper
		if err := ExtractJSON(answer, &found); err != nil {
			p.logger.Warn("unparseable paper list", zap.String("link", links[i]), zap.Error(err))
			continue
		}
		total += len(found)
		for _, paper := range found {
			paper.Link = links[i]
			if !paper.accepted() {
				continue
			}
			paper.NameConfirm = ""
			paper.PaperConfirm = ""
			papers = append(papers, paper)
		}
	}
	p.logger.Info("papers extracted",
		zap.String("professor", professor), zap.Int("pages", len(prompts)),
		zap.Int("candidates", total), zap.Int("kept", len(papers)))
	return papers, transcripts, nil
}

// DeduplicatePapers asks the model which records describe the same output
// and returns one record per output.
func (p *Pipeline) DeduplicatePapers(ctx context.Context, papers []Paper) ([]Paper, error) {
	out, _, err := p.dedup(ctx, papers)
	return out, err
}

func (p *Pipeline) dedup(ctx context.Context, papers []Paper) ([]Paper, []agent.Message, error) {
	if len(papers) == 0 {
		return []Paper{}, nil, nil
	}
	brief := indexPapers(papers, func(p Paper) Paper {
		return Paper{Type: p.Type, Value: p.Value, PaperBody: p.PaperBody}
	})
	content, err := marshalText(brief)
	if err != nil {
		return nil, nil, err
	}
	prompt, err := p.prompts.render(promptDedupPaper, paperPrompt{Content: content})
	if err != nil {
		return nil, nil, err
	}

	answer, transcript, err := p.agent.Converse(ctx, prompt, nil, agent.WithoutTools())
	if err != nil {
		return nil, transcript, fmt.Errorf("dedup papers: %w", err)
	}
	var kept []IndexedPaper
	if err := ExtractJSON(answer, &kept); err != nil {
		return nil, transcript, fmt.Errorf("dedup papers: %w", err)
	}
	out := CombineByIndex(kept, papers)
	p.logger.Info("papers deduplicated", zap.Int("before", len(papers)), zap.Int("after", len(out)))
	return out, transcript, nil
}

// ConfirmPapers lets the model verify each record with its tools and
// attaches the verdict and reason.
func (p *Pipeline) ConfirmPapers(ctx context.Context, school, department, professor string, papers []Paper) ([]Paper, error) {
	out, _, err := p.confirm(ctx, school, department, professor, papers)
	return out, err
}

func (p *Pipeline) confirm(ctx context.Context, school, department, professor string, papers []Paper) ([]Paper, []agent.Message, error) {
	if len(papers) == 0 {
		return []Paper{}, nil, nil
	}
	brief := indexPapers(papers, func(p Paper) Paper {
		return Paper{Type: p.Type, Value: p.Value}
	})
	list, err := marshalText(brief)
	if err != nil {
		return nil, nil, err
	}
	prompt, err := p.prompts.render(promptConfirmPapers, confirmPrompt{
		School: school, Department: department, Professor: professor, Papers: list,
	})
	if err != nil {
		return nil, nil, err
	}

	answer, transcript, err := p.agent.Converse(ctx, prompt, nil)
	if err != nil {
		return nil, transcript, fmt.Errorf("confirm papers: %w", err)
	}
	var verdicts []IndexedPaper
	if err := ExtractJSON(answer, &verdicts); err != nil {
		return nil, transcript, fmt.Errorf("confirm papers: %w", err)
	}
	out := CombineByIndex(verdicts, papers)
	p.logger.Info("papers confirmed", zap.String("professor", professor), zap.Int("verdicts", len(out)))
	return out, transcript, nil
}

// Result of one RetrieveProfessorPapers run.
type Result struct {
	RunID  string  `json:"run_id"`
	Papers []Paper `json:"papers"`
	Path   string  `json:"path,omitempty"` // JSON export, if any
}

// RetrieveProfessorPapers runs extraction, deduplication and confirmation
// for one professor, then persists and exports the confirmed records.
func (p *Pipeline) RetrieveProfessorPapers(ctx context.Context, school, department, professor string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run", res.RunID), zap.String("professor", professor))
	log.Info("retrieving papers", zap.String("school", school), zap.String("department", department))

	papers, extracted, err := p.professorPapers(ctx, school, department, professor)
	p.saveTranscript(log, res.RunID, StepExtract, extracted)
	if err != nil {
		return nil, err
	}
	if len(papers) > 0 {
		var transcript []agent.Message
		papers, transcript, err = p.dedup(ctx, papers)
		p.saveTranscript(log, res.RunID, StepDedup, transcript)
		if err != nil {
			return nil, err
		}
		papers, transcript, err = p.confirm(ctx, school, department, professor, papers)
		p.saveTranscript(log, res.RunID, StepConfirm, transcript)
		if err != nil {
			return nil, err
		}
	}
	res.Papers = papers

	if p.store != nil {
		if err := p.store.SavePapers(school, department, professor, toStoredPapers(papers)); err != nil {
			return nil, fmt.Errorf("save papers: %w", err)
		}
	}
	if p.dataDir != "" {
		res.Path = filepath.Join(p.dataDir, "professors", exportName(school, department, professor))
		if err := writeJSON(res.Path, papers); err != nil {
			return nil, err
		}
	}
	log.Info("papers retrieved", zap.Int("papers", len(papers)), zap.String("path", res.Path))
	return res, nil
}

func (p *Pipeline) saveTranscript(log *zap.Logger, runID, step string, messages any) {
	if p.store == nil {
		return
	}
	switch m := messages.(type) {
	case nil:
		return
	case []agent.Message:
		if len(m) == 0 {
			return
		}
	case [][]agent.Message:
		if len(m) == 0 {
			return
		}
	}
	if err := p.store.SaveTranscript(runID, step, messages); err != nil {
		log.Warn("save transcript failed", zap.String("step", step), zap.Error(err))
	}
}

// pagePrompts fetches every hit and renders one prompt per page with text.
// The returned links are aligned with the prompts.
func (p *Pipeline) pagePrompts(ctx context.Context, hits []tools.SearchResult, render func(content string) (string, error)) ([]string, []string, error) {
	urls := make([]string, len(hits))
	for i, h := range hits {
		urls[i] = h.Link
	}
	contents := p.fetcher.FetchAll(ctx, urls)

	var links, prompts []string
	for i, content := range contents {
		if strings.TrimSpace(content) == "" {
			p.logger.Debug("skipping empty page", zap.String("link", urls[i]))
			continue
		}
		prompt, err := render(clip(content, p.contentSize))
		if err != nil {
			return nil, nil, err
		}
		links = append(links, urls[i])
		prompts = append(prompts, prompt)
	}
	return links, prompts, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func marshalText(v any) (string, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

func exportName(parts ...string) string {
	clean := strings.NewReplacer("/", "-", "\\", "-", "\x00", "")
	for i, part := range parts {
		parts[i] = clean.Replace(strings.TrimSpace(part))
	}
	return strings.Join(parts, "_") + ".json"
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}
