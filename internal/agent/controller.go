package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"forge/internal/llm"
	"forge/internal/logging"
	"forge/internal/provider"
	"forge/internal/thread"
	"forge/internal/tools"
)

// FallbackError reports that the primary provider and the local fallback
// both failed.
type FallbackError struct {
	Primary    string
	PrimaryErr error
	Local      string
	LocalErr   error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s failed: %v; local fallback %s also failed: %v", e.Primary, e.PrimaryErr, e.Local, e.LocalErr)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.PrimaryErr, e.LocalErr}
}

// errStopped signals that the consumer stopped pulling events.
var errStopped = errors.New("event consumer stopped")

// Controller runs user messages against a thread: primary provider first,
// the local provider once if the primary fails.
type Controller struct {
	threads  *thread.Manager
	executor *tools.Executor
	primary  provider.Provider
	local    provider.Provider
	opts     Options
}

// NewController returns a controller. A nil local provider disables
// fallback.
func NewController(threads *thread.Manager, executor *tools.Executor, primary, local provider.Provider, opts Options) *Controller {
	return &Controller{
		threads:  threads,
		executor: executor,
		primary:  primary,
		local:    local,
		opts:     opts,
	}
}

// Primary returns the primary provider.
func (c *Controller) Primary() provider.Provider {
	return c.primary
}

// Send appends userText to the thread (the current one when threadID is
// empty), runs the agent and streams its events. The thread is locked for
// the whole run. The final assistant text is appended to the thread before
// the summary event.
func (c *Controller) Send(ctx context.Context, threadID, userText string) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		start := time.Now()

		h, err := c.threads.Acquire(ctx, threadID)
		if err != nil {
			yield(Event{}, fmt.Errorf("open thread: %w", err))
			return
		}
		defer h.Release()

		h.AppendMessage(llm.NewMessage(llm.RoleUser, userText))

		summary, err := c.run(ctx, c.primary, h, yield)
		if errors.Is(err, errStopped) {
			return
		}
		if err != nil {
			if !c.canFallBack(ctx) {
				yield(Event{}, err)
				return
			}

			logging.Warn("primary provider failed, falling back to local",
				"primary", c.primary.Name(), "local", c.local.Name(), "error", err)
			marker := fmt.Sprintf("[%s failed, falling back to local model %s]", c.primary.Name(), c.local.Model())
			if !yield(logEvent("warn", err.Error()), nil) || !yield(textEvent(marker), nil) {
				return
			}

			primaryErr := err
			summary, err = c.run(ctx, c.local, h, yield)
			if errors.Is(err, errStopped) {
				return
			}
			if err != nil {
				yield(Event{}, &FallbackError{
					Primary:    c.primary.Name(),
					PrimaryErr: primaryErr,
					Local:      c.local.Name(),
					LocalErr:   err,
				})
				return
			}
			summary.FellBack = true
		}

		if summary.Text != "" {
			h.AppendMessage(llm.NewMessage(llm.RoleAssistant, summary.Text))
		}
		summary.Duration = time.Since(start)
		yield(summaryEvent(summary), nil)
	}
}

func (c *Controller) canFallBack(ctx context.Context) bool {
	if ctx.Err() != nil || c.local == nil || c.primary.Local() {
		return false
	}
	return c.opts.Fallback
}

// run forwards a loop's events, keeping back its summary.
func (c *Controller) run(ctx context.Context, p provider.Provider, conv Conversation, yield func(Event, error) bool) (*Summary, error) {
	loop := NewLoop(p, c.executor, c.opts)
	for ev, err := range loop.Run(ctx, conv) {
		if err != nil {
			return nil, err
		}
		if ev.Kind == KindSummary {
			return ev.Summary, nil
		}
		if !yield(ev, nil) {
			return nil, errStopped
		}
	}
	return nil, errStopped
}
