package agent

import (
	"context"
	"iter"
	"strings"
	"time"

	"forge/internal/config"
	"forge/internal/llm"
	"forge/internal/logging"
	"forge/internal/provider"
	"forge/internal/tools"
)

// CeilingNotice is appended to the output when a run hits its iteration
// ceiling.
const CeilingNotice = "[stopped: maximum iterations reached]"

// Options tune a Loop.
type Options struct {
	// MaxIterations caps provider calls for remote providers,
	// LocalMaxIterations for local ones.
	MaxIterations      int
	LocalMaxIterations int
	// HistoryTurns is how many past user/assistant messages seed a run.
	HistoryTurns int
	// Temperature overrides the provider's configured value when set.
	Temperature *float64
	MaxTokens   int
	Workspace   string
	// Fallback enables the local retry in Controller.
	Fallback bool
}

// OptionsFromConfig builds Options for a workspace root.
func OptionsFromConfig(cfg *config.Config, workspace string) Options {
	temperature := cfg.Provider.Temperature
	return Options{
		MaxIterations:      cfg.Agent.MaxIterations,
		LocalMaxIterations: cfg.Agent.LocalMaxIterations,
		HistoryTurns:       cfg.Agent.HistoryTurns,
		Temperature:        &temperature,
		MaxTokens:          cfg.Provider.MaxTokens,
		Workspace:          workspace,
		Fallback:           cfg.Agent.Fallback,
	}
}

// Conversation is the thread a run reads from and mutates through tools.
type Conversation interface {
	tools.Session
	Messages() []llm.Message
}

// Loop drives one provider through reason/act/observe rounds.
type Loop struct {
	provider provider.Provider
	executor *tools.Executor
	opts     Options
}

// NewLoop returns a loop for p.
func NewLoop(p provider.Provider, executor *tools.Executor, opts Options) *Loop {
	return &Loop{provider: p, executor: executor, opts: opts}
}

// Ceiling returns the maximum number of provider calls of one run.
func (l *Loop) Ceiling() int {
	n := l.opts.MaxIterations
	if l.provider.Local() {
		n = l.opts.LocalMaxIterations
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// Run executes one run over conv's history. Tool invocations of one turn
// run sequentially in model order. A successful run ends with a summary
// event; a provider failure ends the stream with that error.
func (l *Loop) Run(ctx context.Context, conv Conversation) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		start := time.Now()
		session := &bufferedSession{Session: conv}
		toolCtx := tools.WithSession(ctx, session)

		running := llm.TrimHistory(conv.Messages(), l.opts.HistoryTurns)
		req := &provider.Request{
			System:      SystemPrompt(l.provider, l.opts.Workspace),
			Tools:       l.executor.Registry().Definitions(),
			Temperature: l.opts.Temperature,
			MaxTokens:   l.opts.MaxTokens,
		}

		summary := &Summary{Provider: l.provider.Name(), Model: l.provider.Model()}
		var text strings.Builder
		emitText := func(s string) bool {
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(s)
			return yield(textEvent(s), nil)
		}

		ceiling := l.Ceiling()
		for {
			if summary.Iterations == ceiling {
				summary.CeilingHit = true
				logging.Warn("iteration ceiling reached", "provider", l.provider.Name(), "ceiling", ceiling)
				if !emitText(CeilingNotice) {
					return
				}
				break
			}
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			summary.Iterations++
			req.Messages = running
			turn, err := l.provider.Send(ctx, req)
			if err != nil {
				yield(Event{}, err)
				return
			}
			summary.InputTokens += turn.InputTokens
			summary.OutputTokens += turn.OutputTokens
			running = append(running, turn.Message())

			if turn.Text != "" && !emitText(turn.Text) {
				return
			}
			if len(turn.Invocations) == 0 {
				break
			}

			results := make([]llm.ToolResult, 0, len(turn.Invocations))
			for _, inv := range turn.Invocations {
				if !yield(toolStartEvent(inv.Name, inv.Arguments), nil) {
					return
				}
				out := l.executor.Execute(toolCtx, inv.Name, inv.Arguments)
				summary.ToolCalls++
				results = append(results, llm.ToolResult{CallID: inv.ID, Name: inv.Name, Content: out})

				if !yield(toolEndEvent(inv.Name, out, strings.HasPrefix(out, "Error:")), nil) {
					return
				}
				for _, ev := range session.drain() {
					if !yield(ev, nil) {
						return
					}
				}
			}
			running = append(running, llm.Message{Role: llm.RoleTool, ToolResults: results, Timestamp: time.Now()})
		}

		summary.Text = text.String()
		summary.Duration = time.Since(start)
		logging.Info("agent run finished",
			"provider", summary.Provider,
			"iterations", summary.Iterations,
			"tool_calls", summary.ToolCalls,
			"ceiling_hit", summary.CeilingHit,
			"duration", summary.Duration)
		yield(summaryEvent(summary), nil)
	}
}

// bufferedSession holds task notifications until the loop can emit them
// as log events.
type bufferedSession struct {
	tools.Session
	pending []Event
}

func (s *bufferedSession) Notify(level, message string) {
	s.pending = append(s.pending, logEvent(level, message))
}

func (s *bufferedSession) drain() []Event {
	out := s.pending
	s.pending = nil
	return out
}
