package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType identifies the type of a stream-json event.
type EventType string

const (
	EventTypeSystem    EventType = "system"
	EventTypeAssistant EventType = "assistant"
	EventTypeUser      EventType = "user"
	EventTypeResult    EventType = "result"
)

// ContentType identifies the type of a content block.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// StreamEvent is one line of `--output-format stream-json` output.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Subtype   string    `json:"subtype,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`

	// Present on result events. Older CLI builds report cost_usd.
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	Result       string  `json:"result,omitempty"`
	IsErrorFlag  bool    `json:"is_error,omitempty"`

	Tools []string `json:"tools,omitempty"`
}

// Message holds the content blocks of an assistant or user event.
type Message struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is text, a tool use, or a tool result.
type ContentBlock struct {
	Type ContentType `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ParseStreamEvent parses one output line. Empty lines yield nil, nil.
func ParseStreamEvent(line string) (*StreamEvent, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	var event StreamEvent
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		return nil, fmt.Errorf("failed to parse stream event: %w", err)
	}
	return &event, nil
}

// IsInitEvent reports whether e is the system init event.
func (e *StreamEvent) IsInitEvent() bool {
	return e.Type == EventTypeSystem && e.Subtype == "init"
}

// IsSuccess reports whether e is a successful result event.
func (e *StreamEvent) IsSuccess() bool {
	return e.Type == EventTypeResult && e.Subtype == "success" && !e.IsErrorFlag
}

// IsError reports whether e is a failed result event.
func (e *StreamEvent) IsError() bool {
	return e.Type == EventTypeResult && (e.IsErrorFlag || strings.HasPrefix(e.Subtype, "error"))
}

// Cost returns the reported cost in USD.
func (e *StreamEvent) Cost() float64 {
	if e.TotalCostUSD > 0 {
		return e.TotalCostUSD
	}
	return e.CostUSD
}

// ToolUses returns the tool_use blocks of an assistant event.
func (e *StreamEvent) ToolUses() []ContentBlock {
	if e.Type != EventTypeAssistant || e.Message == nil {
		return nil
	}
	var tools []ContentBlock
	for _, block := range e.Message.Content {
		if block.Type == ContentTypeToolUse {
			tools = append(tools, block)
		}
	}
	return tools
}

// Text returns the concatenated text blocks of e.
func (e *StreamEvent) Text() string {
	if e.Message == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range e.Message.Content {
		if block.Type == ContentTypeText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// Transcript accumulates what one assistant invocation reported.
type Transcript struct {
	SessionID string
	ToolCalls int
	Turns     int
	CostUSD   float64
	Completed bool
	Success   bool
	Result    string
	Lines     int

	text strings.Builder
}

// Feed parses line and folds it into the transcript. Lines that are not
// stream-json (plain text output, stderr) are kept as text.
func (t *Transcript) Feed(line string) {
	t.Lines++
	event, err := ParseStreamEvent(line)
	if err != nil {
		t.appendText(line)
		return
	}
	t.Update(event)
}

// Update folds a parsed event into the transcript.
func (t *Transcript) Update(event *StreamEvent) {
	if event == nil {
		return
	}

	switch event.Type {
	case EventTypeSystem:
		if event.IsInitEvent() {
			t.SessionID = event.SessionID
		}
	case EventTypeAssistant:
		t.ToolCalls += len(event.ToolUses())
		t.appendText(event.Text())
	case EventTypeUser:
		t.Turns++
	case EventTypeResult:
		t.Completed = true
		t.Success = event.IsSuccess()
		t.CostUSD = event.Cost()
		t.Result = event.Result
		if event.NumTurns > 0 {
			t.Turns = event.NumTurns
		}
	}
}

// Mutated reports whether the assistant used any tool, i.e. whether it may
// have changed the workspace.
func (t *Transcript) Mutated() bool {
	return t.ToolCalls > 0
}

// Output returns the final result text, or the accumulated text when no
// result event was seen.
func (t *Transcript) Output() string {
	if t.Result != "" {
		return t.Result
	}
	return strings.TrimSpace(t.text.String())
}

func (t *Transcript) appendText(s string) {
	if s == "" {
		return
	}
	if t.text.Len() > 0 {
		t.text.WriteByte('\n')
	}
	t.text.WriteString(s)
}
