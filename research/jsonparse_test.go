package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"bare array", `["a", "b"]`, []string{"a", "b"}},
		{"fenced", "Here you go:\n```json\n[\"a\"]\n```\nDone.", []string{"a"}},
		{"fence without language", "```\n[\"x\", \"y\"]\n```", []string{"x", "y"}},
		{"prose around", `名单如下： ["张三","李四"] 以上。`, []string{"张三", "李四"}},
		{"bracket noise first", `[see below] {"oops": 1} ["ok"]`, []string{"ok"}},
		{"empty", `[]`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			require.NoError(t, ExtractJSON(tc.in, &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	var got IndexedPaper
	require.NoError(t, ExtractJSON(`result: {"index": 3, "type": "paper", "value": "T", "confirm": "yes"} end`, &got))
	assert.Equal(t, IndexedPaper{Index: 3, Paper: Paper{Type: "paper", Value: "T", Confirm: "yes"}}, got)
}

func TestExtractJSONFailures(t *testing.T) {
	var got []string
	assert.ErrorIs(t, ExtractJSON("no json here", &got), ErrNoJSON)
	assert.ErrorIs(t, ExtractJSON("", &got), ErrNoJSON)
	assert.ErrorIs(t, ExtractJSON(`{"not": "a list"}`, &got), ErrNoJSON)
	assert.ErrorIs(t, ExtractJSON(`["unterminated"`, &got), ErrNoJSON)
}

func TestCombineByIndex(t *testing.T) {
	sources := []Paper{
		{Type: "paper", Value: "Original A", PaperBody: "body A", Link: "https://a"},
		{Type: "patent", Value: "Original B", Link: "https://b"},
	}
	items := []IndexedPaper{
		{Index: 1, Paper: Paper{Value: "model B", Confirm: "no", Reason: "different author"}},
		{Index: 7, Paper: Paper{Value: "invented"}},
		{Index: 0, Paper: Paper{Confirm: "yes"}},
	}
	got := CombineByIndex(items, sources)
	assert.Equal(t, []Paper{
		{Type: "patent", Value: "Original B", Link: "https://b", Confirm: "no", Reason: "different author"},
		{Value: "invented"},
		{Type: "paper", Value: "Original A", PaperBody: "body A", Link: "https://a", Confirm: "yes"},
	}, got)
	assert.Empty(t, CombineByIndex(nil, sources))
}

func TestIndexPapers(t *testing.T) {
	papers := []Paper{
		{Type: "paper", Value: "A", PaperBody: "body", Link: "https://a", Confirm: Yes},
		{Type: "patent", Value: "B"},
	}
	got := indexPapers(papers, func(p Paper) Paper { return Paper{Type: p.Type, Value: p.Value} })
	assert.Equal(t, []IndexedPaper{
		{Index: 0, Paper: Paper{Type: "paper", Value: "A"}},
		{Index: 1, Paper: Paper{Type: "patent", Value: "B"}},
	}, got)
	assert.Equal(t, "body", papers[0].PaperBody)
}

func TestAccepted(t *testing.T) {
	base := Paper{NameConfirm: Yes, SchoolConfirm: Uncertain, DepartmentConfirm: Yes, PaperConfirm: Yes}
	assert.True(t, base.accepted())

	for _, mutate := range []func(*Paper){
		func(p *Paper) { p.NameConfirm = Uncertain },
		func(p *Paper) { p.SchoolConfirm = No },
		func(p *Paper) { p.DepartmentConfirm = No },
		func(p *Paper) { p.PaperConfirm = No },
	} {
		p := base
		mutate(&p)
		assert.False(t, p.accepted(), "%+v", p)
	}
}
