package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/gliderlab/scholarscout/agent"
	"github.com/gliderlab/scholarscout/research"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *ProfessorsCmd) Execute(_ []string) error {
	a, err := newApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.newPipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	list, err := p.ProfessorList(ctx, c.School, c.Department)
	if err != nil {
		return err
	}
	for _, prof := range list {
		fmt.Fprintf(stdout, "%s\t%s\n", prof.Name, prof.Link)
	}
	a.logger.Info("professors found", zap.Int("count", len(list)))
	return nil
}

func (c *PapersCmd) Execute(_ []string) error {
	if c.Professor == "" && !c.All {
		return errors.New("either --professor or --all is required")
	}
	a, err := newApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.newPipeline()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	names := []string{c.Professor}
	if c.All {
		stored, err := a.store.ListProfessors(c.School, c.Department)
		if err != nil {
			return err
		}
		if len(stored) == 0 {
			return fmt.Errorf("no professors stored for %s %s, run the professors command first", c.School, c.Department)
		}
		names = names[:0]
		for _, prof := range stored {
			names = append(names, prof.Name)
		}
	}

	for _, name := range names {
		res, err := p.RetrieveProfessorPapers(ctx, c.School, c.Department, name)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			a.logger.Error("retrieve papers failed", zap.String("professor", name), zap.Error(err))
			continue
		}
		printPapers(stdout, name, res)
	}
	return nil
}

func printPapers(w io.Writer, professor string, res *research.Result) {
	fmt.Fprintf(w, "== %s (%d records, run %s)\n", professor, len(res.Papers), res.RunID)
	for _, paper := range res.Papers {
		fmt.Fprintf(w, "[%s] %s: %s\n", paper.Confirm, paper.Type, paper.Value)
		if paper.Reason != "" {
			fmt.Fprintf(w, "    %s\n", paper.Reason)
		}
	}
	if res.Path != "" {
		fmt.Fprintf(w, "saved to %s\n", res.Path)
	}
}

func (c *ChatCmd) Execute(_ []string) error {
	a, err := newApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ag, err := a.newAgent(a.chatTools()...)
	if err != nil {
		return err
	}
	opts := []agent.Option{agent.WithTools(!c.NoTools)}

	var store agent.SessionStore
	key := "main"
	if c.Session != "" {
		store, key = a.store, c.Session
	}
	sessions := agent.NewSessionManager(store, a.logger.Named("session"))
	if _, err := sessions.Open(key); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if c.Message != "" {
		return converse(ctx, stdout, ag, sessions, key, c.Message, opts)
	}
	return chatLoop(ctx, os.Stdin, stdout, ag, sessions, key, opts)
}

// converse sends one message on top of the session history and records the
// transcript.
func converse(ctx context.Context, out io.Writer, ag *agent.Agent, sessions *agent.SessionManager, key, message string, opts []agent.Option) error {
	history, err := sessions.History(key)
	if err != nil {
		return err
	}
	reply, transcript, err := ag.Converse(ctx, message, history, opts...)
	if err != nil && !errors.Is(err, agent.ErrMaxRounds) {
		return err
	}
	if uerr := sessions.Update(key, transcript); uerr != nil {
		return uerr
	}
	fmt.Fprintln(out, reply)
	return err
}

// chatLoop reads one message per line until EOF, "exit" or "quit".
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, ag *agent.Agent, sessions *agent.SessionManager, key string, opts []agent.Option) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fmt.Fprintf(out, "scholarscout chat (session %s), type 'exit' to quit\n", key)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			if err := sessions.Clear(key); err != nil {
				return err
			}
			fmt.Fprintln(out, "history cleared")
			continue
		}

		if err := converse(ctx, out, ag, sessions, key, line, opts); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func (c *ToolsCmd) Execute(_ []string) error {
	a, err := newApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ag, err := a.newAgent(a.chatTools()...)
	if err != nil {
		return err
	}
	catalog := ag.Catalog()
	if !c.JSON {
		fmt.Fprintln(stdout, catalog.String())
		return nil
	}

	specs := make([]map[string]any, 0, catalog.Len())
	for _, d := range catalog.List() {
		specs = append(specs, d.Spec())
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(specs)
}
