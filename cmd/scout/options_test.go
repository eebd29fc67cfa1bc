package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gliderlab/scholarscout/agent"
	"github.com/gliderlab/scholarscout/research"
	"github.com/gliderlab/scholarscout/storage"
)

func parse(t *testing.T, args ...string) (*Options, flags.Commander, error) {
	t.Helper()
	opts := NewOptions()
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	var selected flags.Commander
	parser.CommandHandler = func(cmd flags.Commander, _ []string) error {
		selected = cmd
		return nil
	}
	_, err := parser.ParseArgs(args)
	return opts, selected, err
}

func TestParseCommands(t *testing.T) {
	testCases := []struct {
		name   string
		args   []string
		verify func(t *testing.T, opts *Options, cmd flags.Commander)
	}{
		{
			name: "professors",
			args: []string{"-f", "scout.toml", "professors", "-s", "江苏科技大学", "--department", "材料学院"},
			verify: func(t *testing.T, opts *Options, cmd flags.Commander) {
				assert.Equal(t, "scout.toml", opts.Config)
				assert.Same(t, opts.Professors, cmd)
				assert.Equal(t, "江苏科技大学", opts.Professors.School)
				assert.Equal(t, "材料学院", opts.Professors.Department)
				assert.Same(t, opts, opts.Professors.opts)
			},
		},
		{
			name: "papers for all",
			args: []string{"--force-config", "papers", "-s", "S", "-d", "D", "--all"},
			verify: func(t *testing.T, opts *Options, cmd flags.Commander) {
				assert.True(t, opts.ForceConfig)
				assert.Same(t, opts.Papers, cmd)
				assert.True(t, opts.Papers.All)
				assert.Empty(t, opts.Papers.Professor)
			},
		},
		{
			name: "chat one message",
			args: []string{"-v", "chat", "--no-tools", "-m", "hello"},
			verify: func(t *testing.T, opts *Options, cmd flags.Commander) {
				assert.True(t, opts.Verbose)
				assert.Same(t, opts.Chat, cmd)
				assert.True(t, opts.Chat.NoTools)
				assert.Equal(t, "hello", opts.Chat.Message)
			},
		},
		{
			name: "tools json",
			args: []string{"tools", "--json"},
			verify: func(t *testing.T, opts *Options, cmd flags.Commander) {
				assert.Same(t, opts.Tools, cmd)
				assert.True(t, opts.Tools.JSON)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts, cmd, err := parse(t, tc.args...)
			require.NoError(t, err)
			tc.verify(t, opts, cmd)
		})
	}
}

func TestParseRequiresDepartment(t *testing.T) {
	_, cmd, err := parse(t, "professors", "-s", "S")
	require.Error(t, err)
	assert.Nil(t, cmd)
	assert.Contains(t, err.Error(), "department")
}

func TestPapersNeedsProfessorOrAll(t *testing.T) {
	opts := NewOptions()
	opts.Papers.School, opts.Papers.Department = "S", "D"
	err := opts.Papers.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestRunHelp(t *testing.T) {
	assert.Equal(t, 0, run([]string{"--help"}))
	assert.Equal(t, 1, run([]string{"nope"}))
}

func TestPrintPapers(t *testing.T) {
	var out bytes.Buffer
	printPapers(&out, "张三", &research.Result{
		RunID: "run-1",
		Path:  "data/professors/x.json",
		Papers: []research.Paper{
			{Type: "paper", Value: "Graph Learning", Confirm: research.Yes, Reason: "match"},
			{Type: "project", Value: "NSFC", Confirm: research.Uncertain},
		},
	})
	assert.Equal(t, "== 张三 (2 records, run run-1)\n"+
		"[yes] paper: Graph Learning\n"+
		"    match\n"+
		"[uncertain] project: NSFC\n"+
		"saved to data/professors/x.json\n", out.String())
}

func TestChatLoopKeepsHistory(t *testing.T) {
	var requests []agent.CompletionRequest
	client := agent.CompleterFunc(func(_ context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
		requests = append(requests, req)
		return &agent.CompletionResponse{FinishReason: "stop", Content: "reply " + req.Messages[len(req.Messages)-1].Content}, nil
	})
	ag, err := agent.New(agent.Config{Client: client, Model: "m", SystemPrompt: "sys"})
	require.NoError(t, err)

	sessions := agent.NewSessionManager(nil, nil)
	_, err = sessions.Open("main")
	require.NoError(t, err)

	in := strings.NewReader("hi\n\nagain\n/reset\nfresh\nexit\nignored\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), in, &out, ag, sessions, "main", nil))

	assert.Contains(t, out.String(), "reply hi\n")
	assert.Contains(t, out.String(), "reply again\n")
	assert.Contains(t, out.String(), "history cleared\n")
	assert.NotContains(t, out.String(), "ignored")

	require.Len(t, requests, 3)
	assert.Len(t, requests[0].Messages, 2)
	// system, hi, reply hi, again
	assert.Len(t, requests[1].Messages, 4)
	assert.Len(t, requests[2].Messages, 2)
}

func TestConverseResumesStoredSession(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	defer store.Close()

	var seen int
	client := agent.CompleterFunc(func(_ context.Context, req agent.CompletionRequest) (*agent.CompletionResponse, error) {
		seen = len(req.Messages)
		return &agent.CompletionResponse{FinishReason: "stop", Content: "ok"}, nil
	})
	ag, err := agent.New(agent.Config{Client: client, Model: "m", SystemPrompt: "sys"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		sessions := agent.NewSessionManager(store, nil)
		_, err := sessions.Open("thesis")
		require.NoError(t, err)
		var out bytes.Buffer
		require.NoError(t, converse(context.Background(), &out, ag, sessions, "thesis", "next", nil))
		assert.Equal(t, "ok\n", out.String())
	}
	// system, next, ok, next
	assert.Equal(t, 4, seen)

	list, err := store.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].MessageCount)
}
