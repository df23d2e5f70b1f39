package agent

import (
	"time"
)

// Kind discriminates Event.
type Kind string

const (
	KindText      Kind = "text"
	KindToolStart Kind = "tool_start"
	KindToolEnd   Kind = "tool_end"
	KindLog       Kind = "log"
	KindSummary   Kind = "summary"
)

// Event is one item of a run's stream. Which fields are set depends on Kind:
// text carries Text; tool_start carries Tool and Args; tool_end carries Tool,
// Result and Failed; log carries Level and Text; summary carries Summary.
type Event struct {
	Kind    Kind           `json:"type"`
	Text    string         `json:"text,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  string         `json:"result,omitempty"`
	Failed  bool           `json:"failed,omitempty"`
	Level   string         `json:"level,omitempty"`
	Summary *Summary       `json:"summary,omitempty"`
	Time    time.Time      `json:"time"`
}

// Summary describes a finished run.
type Summary struct {
	Text         string        `json:"text"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Iterations   int           `json:"iterations"`
	ToolCalls    int           `json:"tool_calls"`
	CeilingHit   bool          `json:"ceiling_hit,omitempty"`
	FellBack     bool          `json:"fell_back,omitempty"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
}

func textEvent(s string) Event {
	return Event{Kind: KindText, Text: s, Time: time.Now()}
}

func logEvent(level, s string) Event {
	return Event{Kind: KindLog, Level: level, Text: s, Time: time.Now()}
}

func toolStartEvent(name string, args map[string]any) Event {
	return Event{Kind: KindToolStart, Tool: name, Args: args, Time: time.Now()}
}

func toolEndEvent(name, result string, failed bool) Event {
	return Event{Kind: KindToolEnd, Tool: name, Result: result, Failed: failed, Time: time.Now()}
}

func summaryEvent(s *Summary) Event {
	return Event{Kind: KindSummary, Summary: s, Time: time.Now()}
}
