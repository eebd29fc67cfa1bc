// Agent module - tool-calling conversation loop over a completion endpoint

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gliderlab/scholarscout/tools"
)

const (
	DefaultMaxRepeatToolCalls = 3
	DefaultMaxRounds          = 20
)

// Fixed texts placed in the transcript by the loop itself.
const (
	RepeatedCallMessage = "Error: Detected repeated function call. Function calls aborted to prevent infinite loop."
	RepeatLimitMessage  = "Error: Maximum repeated function call limit reached. You cannot call any function anymore. Please provide your final answer."
	NoResponseMessage   = "No response generated."
	RoundLimitMessage   = "Error: Maximum number of conversation rounds reached without a final answer."
)

var (
	// ErrMaxRounds is returned together with the transcript when the model
	// keeps requesting tools past Config.MaxRounds.
	ErrMaxRounds          = errors.New("maximum conversation rounds reached")
	ErrMalformedArguments = errors.New("malformed tool call arguments")
	ErrHistoryLength      = errors.New("histories and messages differ in length")
)

// Config configures an Agent; only Client is required.
type Config struct {
	Client       Completer
	Model        string
	Catalog      *tools.Catalog
	SystemPrompt string
	Temperature  float64
	// MaxRepeatToolCalls is how often one identical call may recur before
	// tools are withdrawn; 0 means DefaultMaxRepeatToolCalls.
	MaxRepeatToolCalls int
	// MaxRounds caps completion requests per Converse; 0 means DefaultMaxRounds.
	MaxRounds int
	Logger    *zap.Logger
}

// Agent drives conversations. It holds no per-conversation state, so one
// Agent may serve concurrent Converse calls on distinct histories.
type Agent struct {
	client             Completer
	model              string
	catalog            *tools.Catalog
	systemPrompt       string
	temperature        float64
	maxRepeatToolCalls int
	maxRounds          int
	logger             *zap.Logger
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Agent, error) {
	if cfg.Client == nil {
		return nil, errors.New("agent: completion client is required")
	}
	a := &Agent{
		client:             cfg.Client,
		model:              cfg.Model,
		catalog:            cfg.Catalog,
		systemPrompt:       cfg.SystemPrompt,
		temperature:        cfg.Temperature,
		maxRepeatToolCalls: cfg.MaxRepeatToolCalls,
		maxRounds:          cfg.MaxRounds,
		logger:             cfg.Logger,
	}
	if a.catalog == nil {
		a.catalog = tools.NewCatalog()
	}
	if a.maxRepeatToolCalls <= 0 {
		a.maxRepeatToolCalls = DefaultMaxRepeatToolCalls
	}
	if a.maxRounds <= 0 {
		a.maxRounds = DefaultMaxRounds
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a, nil
}

// Catalog returns the tools offered to the model.
func (a *Agent) Catalog() *tools.Catalog {
	return a.catalog
}

type options struct {
	useTools bool
}

// Option adjusts a single Converse call.
type Option func(*options)

// WithoutTools keeps tools out of every request of the conversation.
func WithoutTools() Option {
	return func(o *options) { o.useTools = false }
}

// WithTools sets whether tools are offered.
func WithTools(use bool) Option {
	return func(o *options) { o.useTools = use }
}

// Converse sends message (after history, or after the system prompt when
// history is empty) and runs the tool loop to a final answer. history is
// never modified; the returned transcript is a fresh slice that can be
// passed back as history to continue.
func (a *Agent) Converse(ctx context.Context, message string, history []Message, opts ...Option) (string, []Message, error) {
	o := options{useTools: true}
	for _, opt := range opts {
		opt(&o)
	}
	return a.run(ctx, a.initialMessages(message, history), o.useTools)
}

// BatchConverse runs Converse for each message in order, one at a time.
// histories may be nil; otherwise it must match messages in length. On error
// the results gathered so far are returned.
func (a *Agent) BatchConverse(ctx context.Context, messages []string, histories [][]Message, opts ...Option) ([]string, [][]Message, error) {
	if histories != nil && len(histories) != len(messages) {
		return nil, nil, fmt.Errorf("%w: %d histories for %d messages", ErrHistoryLength, len(histories), len(messages))
	}
	answers := make([]string, 0, len(messages))
	transcripts := make([][]Message, 0, len(messages))
	for i, msg := range messages {
		var history []Message
		if histories != nil {
			history = histories[i]
		}
		answer, transcript, err := a.Converse(ctx, msg, history, opts...)
		if err != nil {
			return answers, transcripts, fmt.Errorf("batch item %d: %w", i, err)
		}
		answers = append(answers, answer)
		transcripts = append(transcripts, transcript)
		a.logger.Debug("batch item done", zap.Int("item", i), zap.Int("of", len(messages)))
	}
	return answers, transcripts, nil
}

func (a *Agent) initialMessages(message string, history []Message) []Message {
	user := Message{Role: RoleUser, Content: message}
	if len(history) == 0 {
		return []Message{{Role: RoleSystem, Content: a.systemPrompt}, user}
	}
	messages := cloneMessages(history, 1)
	return append(messages, user)
}

type loopState int

const (
	awaitingModel loopState = iota
	executingTools
	done
)

func (a *Agent) run(ctx context.Context, messages []Message, useTools bool) (string, []Message, error) {
	guard := newRepeatGuard(a.maxRepeatToolCalls)
	state := awaitingModel
	rounds := 0
	var resp *CompletionResponse

	for {
		switch state {
		case awaitingModel:
			if rounds >= a.maxRounds {
				a.logger.Warn("round limit reached", zap.Int("rounds", rounds))
				messages = append(messages, Message{Role: RoleAssistant, Content: RoundLimitMessage})
				return RoundLimitMessage, messages, ErrMaxRounds
			}
			rounds++
			offered := useTools && a.catalog.Len() > 0
			var err error
			resp, err = a.complete(ctx, messages, offered)
			if err != nil {
				return "", messages, err
			}
			// calls against a request that offered no tools are not honoured
			if offered && resp.FinishReason == FinishReasonToolCalls && len(resp.ToolCalls) > 0 {
				state = executingTools
			} else {
				state = done
			}

		case executingTools:
			a.logger.Debug("model requested tools", zap.Int("round", rounds), zap.Int("calls", len(resp.ToolCalls)))
			messages = append(messages, Message{
				Role:      RoleAssistant,
				Content:   StripThinkTags(resp.Content),
				ToolCalls: append([]ToolCall(nil), resp.ToolCalls...),
			})
			for _, call := range resp.ToolCalls {
				result, withdraw, err := a.dispatch(ctx, guard, call)
				if err != nil {
					return "", messages, err
				}
				if withdraw {
					useTools = false
				}
				messages = append(messages, Message{Role: RoleTool, Content: result, ToolCallID: call.ID})
			}
			state = awaitingModel

		case done:
			answer := StripThinkTags(resp.Content)
			if strings.TrimSpace(answer) == "" {
				answer = NoResponseMessage
			}
			messages = append(messages, Message{Role: RoleAssistant, Content: answer})
			return answer, messages, nil
		}
	}
}

func (a *Agent) complete(ctx context.Context, messages []Message, withTools bool) (*CompletionResponse, error) {
	req := CompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: a.temperature,
	}
	if withTools {
		req.Tools = a.catalog.List()
		req.ToolChoice = "auto"
	}
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if resp == nil {
		resp = &CompletionResponse{}
	}
	return resp, nil
}

// dispatch runs one requested call through the repeat guard and the catalog.
// Tool failures come back as "Error: ..." text for the model; an unknown tool
// or unparseable arguments abort the conversation.
func (a *Agent) dispatch(ctx context.Context, guard *repeatGuard, call ToolCall) (string, bool, error) {
	switch guard.admit(call.Signature()) {
	case repeatAbort:
		a.logger.Info("repeated tool call refused", zap.String("tool", call.Function.Name), zap.Int("tolerated", guard.tolerated))
		return RepeatedCallMessage, false, nil
	case repeatHalt:
		a.logger.Warn("repeat limit reached, withdrawing tools", zap.String("tool", call.Function.Name))
		return RepeatLimitMessage, true, nil
	}

	args, err := tools.ParseArgs(call.Function.Arguments)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", ErrMalformedArguments, call.Function.Name, err)
	}
	a.logger.Debug("calling tool", zap.String("tool", call.Function.Name), zap.String("args", call.Function.Arguments))
	result, err := a.catalog.Invoke(ctx, call.Function.Name, args)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			return "", false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		return "Error: " + err.Error(), false, nil
	}
	return tools.FormatResult(result), false, nil
}

type repeatVerdict int

const (
	repeatRun repeatVerdict = iota
	repeatAbort
	repeatHalt
)

// repeatGuard counts executed call signatures. The tolerated level only
// rises; a call whose prior count exceeds it is refused, and once the level
// reaches limit the tools are withdrawn.
type repeatGuard struct {
	seen      map[string]int
	tolerated int
	limit     int
}

func newRepeatGuard(limit int) *repeatGuard {
	return &repeatGuard{seen: make(map[string]int), limit: limit}
}

func (g *repeatGuard) admit(sig string) repeatVerdict {
	prior := g.seen[sig]
	if prior > g.tolerated {
		g.tolerated = prior
		if g.tolerated < g.limit {
			return repeatAbort
		}
		return repeatHalt
	}
	g.seen[sig]++
	return repeatRun
}
