// internal/render/render.go
package render

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/transcript"
)

// MaxContentLength is the character budget used when no tokenizer could be
// loaded, and the default size of event payload previews.
const MaxContentLength = 1000

// Role tells the delivery layer how to present a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAction    Role = "action"
	RoleResult    Role = "result"
	RoleError     Role = "error"
	RoleStatus    Role = "status"
)

// Message is a transcript entry turned into text.
type Message struct {
	Role    Role
	Title   string
	Body    string
	Pending bool
	// Success is nil when the outcome is unknown or not applicable.
	Success *bool
	EventID int64
	HasID   bool
}

// Text joins title and body for channels that only take plain text.
func (m Message) Text() string {
	var parts []string
	if m.Title != "" {
		parts = append(parts, "*"+m.Title+"*")
	}
	if m.Body != "" {
		parts = append(parts, m.Body)
	}
	s := strings.Join(parts, "\n")
	if m.Pending {
		s += "\n_…_"
	}
	return s
}

// Renderer turns transcript entries into Messages with long content cut
// down to a token budget.
type Renderer struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
}

// New creates a renderer whose content previews are limited to maxTokens
// tokens. When the tokenizer cannot be loaded the limit falls back to
// characters.
func New(model string, maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = MaxContentLength / 4
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer unavailable, truncating by characters", "error", err)
			enc = nil
		}
	}
	return &Renderer{tokenizer: enc, maxTokens: maxTokens}
}

// NewPlain creates a renderer that budgets by characters, roughly four per
// token, and never loads a tokenizer.
func NewPlain(maxTokens int) *Renderer {
	if maxTokens <= 0 {
		maxTokens = MaxContentLength / 4
	}
	return &Renderer{maxTokens: maxTokens}
}

// Truncate shortens s to the renderer's budget.
func (r *Renderer) Truncate(s string) string {
	if r.tokenizer == nil {
		limit := r.maxTokens * 4
		if len(s) <= limit {
			return s
		}
		for limit > 0 && !utf8.RuneStart(s[limit]) {
			limit--
		}
		return s[:limit] + "\n\n[Content truncated]"
	}
	tokens := r.tokenizer.Encode(s, nil, nil)
	if len(tokens) <= r.maxTokens {
		return s
	}
	// a token boundary can fall inside a multi-byte rune
	head := strings.ToValidUTF8(r.tokenizer.Decode(tokens[:r.maxTokens]), "")
	return head + "\n\n[Content truncated]"
}

// Entries renders a whole transcript.
func (r *Renderer) Entries(entries []transcript.Entry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, r.Entry(e))
	}
	return out
}

// Entry renders one transcript entry.
func (r *Renderer) Entry(e transcript.Entry) Message {
	if e.Kind == transcript.EntryOptimistic {
		return Message{Role: RoleUser, Body: e.Message, Pending: true}
	}

	var m Message
	switch ev := e.Event.(type) {
	case event.Action:
		m = r.action(ev)
		// actions still waiting on their result show as in progress
		m.Pending = e.InRecent && !e.HasObservationPair && awaitsResult(ev)
	case event.Observation:
		m = r.observation(ev)
	case event.StatusUpdate:
		m = Message{Role: RoleStatus, Title: ev.Type, Body: ev.Message}
		if m.Body == "" {
			m.Body = ev.ID
		}
	default:
		m = Message{Role: RoleStatus, Body: r.fallback(e.Event)}
	}

	if h, ok := event.HeaderOf(e.Event); ok {
		m.EventID, m.HasID = h.ID, true
	}
	return m
}

// awaitsResult reports whether an action normally gets an observation back.
func awaitsResult(a event.Action) bool {
	switch a.(type) {
	case event.UserMessageAction, event.AssistantMessageAction, event.FinishAction,
		event.RejectAction, event.SystemMessageAction:
		return false
	}
	return true
}

func (r *Renderer) action(a event.Action) Message {
	switch ev := a.(type) {
	case event.UserMessageAction:
		body := ev.Args.Content
		if n := len(ev.Args.ImageURLs); n > 0 {
			body += fmt.Sprintf("\n[%d image(s) attached]", n)
		}
		return Message{Role: RoleUser, Body: body}
	case event.AssistantMessageAction:
		body := ev.Args.Content
		if body == "" {
			body = ev.Args.Thought
		}
		return Message{Role: RoleAssistant, Body: body}
	case event.FinishAction:
		body := ev.Args.FinalThought
		if body == "" {
			body = ev.Args.Thought
		}
		m := Message{Role: RoleAssistant, Title: "Finished", Body: body}
		switch ev.Args.TaskCompleted {
		case event.TaskSuccess:
			m.Success = boolPtr(true)
		case event.TaskFailure:
			m.Success = boolPtr(false)
		}
		return m
	case event.RejectAction:
		return Message{Role: RoleAssistant, Title: "Rejected the task", Body: ev.Args.Thought}
	case event.CommandAction:
		return Message{Role: RoleAction, Title: "Running command", Body: thought(ev.Args.Thought) + codeBlock("bash", "$ "+ev.Args.Command)}
	case event.IPythonAction:
		return Message{Role: RoleAction, Title: "Running Python", Body: thought(ev.Args.Thought) + codeBlock("python", ev.Args.Code)}
	case event.ThinkAction:
		return Message{Role: RoleAction, Title: "Thinking", Body: ev.Args.Thought}
	case event.FileReadAction:
		return Message{Role: RoleAction, Title: "Reading " + ev.Args.Path, Body: ev.Args.Thought}
	case event.FileWriteAction:
		return Message{Role: RoleAction, Title: "Writing " + ev.Args.Path, Body: thought(ev.Args.Thought) + codeBlock("", r.Truncate(ev.Args.Content))}
	case event.FileEditAction:
		return Message{Role: RoleAction, Title: "Editing " + ev.Args.Path, Body: ev.Args.Thought}
	case event.BrowseAction:
		return Message{Role: RoleAction, Title: "Browsing " + ev.Args.URL, Body: ev.Args.Thought}
	case event.BrowseInteractiveAction:
		body := ""
		if ev.Args.Thought != nil {
			body = thought(*ev.Args.Thought)
		}
		return Message{Role: RoleAction, Title: "Interactive browsing", Body: body + codeBlock("", ev.Args.BrowserActions)}
	case event.DelegateAction:
		return Message{Role: RoleAction, Title: "Delegating to " + ev.Args.Agent, Body: ev.Args.Thought}
	case event.MCPAction:
		return Message{Role: RoleAction, Title: "Calling tool " + ev.Args.Name, Body: thought(ev.Args.Thought) + r.jsonBlock(ev.Args.Arguments)}
	case event.RecallAction:
		return Message{Role: RoleAction, Title: "Recalling " + string(ev.Args.RecallType), Body: ev.Args.Query}
	}
	return Message{Role: RoleAction, Title: string(a.ActionType()), Body: r.fallback(a)}
}

func (r *Renderer) observation(o event.Observation) Message {
	switch ev := o.(type) {
	case event.CommandObservation:
		m := Message{Role: RoleResult, Title: "Ran " + ev.Extras.Command, Body: codeBlock("", r.Truncate(ev.Content))}
		if code, ok := ev.ExitCode(); ok {
			m.Success = boolPtr(code == 0)
		}
		return m
	case event.IPythonObservation:
		return Message{Role: RoleResult, Title: "Python output", Body: codeBlock("", r.Truncate(ev.Content))}
	case event.ReadObservation:
		return Message{Role: RoleResult, Title: "Read " + ev.Extras.Path, Body: codeBlock("", r.Truncate(ev.Content))}
	case event.WriteObservation:
		return Message{Role: RoleResult, Title: "Wrote " + ev.Extras.Path, Body: r.Truncate(ev.Content)}
	case event.EditObservation:
		body := ev.Extras.Diff
		if body == "" {
			body = ev.Content
		}
		return Message{Role: RoleResult, Title: "Edited " + ev.Extras.Path, Body: codeBlock("diff", r.Truncate(body))}
	case event.BrowseObservation:
		return r.browse("Browsed "+ev.Extras.URL, ev.Content, ev.Extras)
	case event.BrowseInteractiveObservation:
		return r.browse("Browsed "+ev.Extras.URL, ev.Content, ev.Extras)
	case event.ErrorObservation:
		return Message{Role: RoleError, Title: "Error", Body: r.Truncate(ev.Content), Success: boolPtr(false)}
	case event.ThinkObservation:
		return Message{Role: RoleResult, Body: ev.Content}
	case event.DelegateObservation:
		return Message{Role: RoleResult, Title: "Delegate finished", Body: r.jsonBlock(ev.Extras.Outputs)}
	case event.MCPObservation:
		return Message{Role: RoleResult, Title: "Tool " + ev.Extras.Name + " returned", Body: r.Truncate(ev.Content)}
	case event.RecallObservation:
		return Message{Role: RoleResult, Title: "Recalled " + string(ev.Extras.RecallType), Body: recallBody(ev.Extras)}
	case event.UserRejectedObservation:
		return Message{Role: RoleResult, Title: "Action rejected", Body: ev.Content, Success: boolPtr(false)}
	}
	return Message{Role: RoleResult, Title: string(o.ObservationType()), Body: r.fallback(o)}
}

func (r *Renderer) browse(title, content string, extras event.BrowserExtras) Message {
	body := content
	if looksLikeHTML(body) {
		md, err := htmltomarkdown.ConvertString(body)
		if err == nil {
			body = md
		}
	}
	m := Message{Role: RoleResult, Title: title, Body: r.Truncate(body)}
	if extras.Error {
		m.Success = boolPtr(false)
	}
	return m
}

func recallBody(x event.RecallExtras) string {
	var b strings.Builder
	if x.RepoName != "" {
		fmt.Fprintf(&b, "Repository: %s\n", x.RepoName)
	}
	if x.RepoInstructions != "" {
		fmt.Fprintf(&b, "%s\n", x.RepoInstructions)
	}
	for _, k := range x.MicroagentKnowledge {
		fmt.Fprintf(&b, "- %s (trigger: %s)\n", k.Name, k.Trigger)
	}
	return strings.TrimSpace(b.String())
}

// fallback renders an event with no dedicated view as pretty JSON.
func (r *Renderer) fallback(ev event.Event) string {
	if ev == nil {
		return codeBlock("json", "null")
	}
	data, err := event.Encode(ev)
	if err != nil {
		return codeBlock("json", "null")
	}
	return r.jsonBlock(data)
}

func thought(s string) string {
	if s == "" {
		return ""
	}
	return s + "\n"
}

func codeBlock(lang, s string) string {
	return "```" + lang + "\n" + strings.TrimRight(s, "\n") + "\n```"
}

func looksLikeHTML(s string) bool {
	t := strings.TrimSpace(strings.ToLower(s))
	return strings.HasPrefix(t, "<!doctype html") || strings.HasPrefix(t, "<html") ||
		(strings.HasPrefix(t, "<") && strings.Contains(t, "</"))
}

func boolPtr(b bool) *bool { return &b }
