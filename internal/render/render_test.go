// internal/render/render_test.go
package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/transcript"
)

func entries(t *testing.T, optimistic string, raws ...string) []transcript.Entry {
	t.Helper()
	var events []event.Event
	for _, raw := range raws {
		ev, err := event.Decode([]byte(raw))
		require.NoError(t, err)
		events = append(events, ev)
	}
	return transcript.Project(events, optimistic)
}

func TestRenderChatMessages(t *testing.T) {
	r := NewPlain(250)
	msgs := r.Entries(entries(t, "are you there?",
		`{"id":1,"source":"user","action":"message","args":{"content":"fix the build","image_urls":["a.png"]}}`,
		`{"id":2,"source":"agent","action":"message","args":{"content":"","thought":"On it."}}`,
	))
	require.Len(t, msgs, 3)

	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Body, "fix the build")
	assert.Contains(t, msgs[0].Body, "1 image")
	assert.True(t, msgs[0].HasID)
	assert.Equal(t, int64(1), msgs[0].EventID)

	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "On it.", msgs[1].Body)
	assert.False(t, msgs[1].Pending)

	assert.Equal(t, RoleUser, msgs[2].Role)
	assert.Equal(t, "are you there?", msgs[2].Body)
	assert.True(t, msgs[2].Pending)
	assert.False(t, msgs[2].HasID)
}

func TestRenderCommandPairing(t *testing.T) {
	r := NewPlain(250)
	msgs := r.Entries(entries(t, "",
		`{"id":1,"source":"agent","action":"run","args":{"command":"go test ./...","thought":"run tests"}}`,
		`{"id":2,"source":"agent","observation":"run","cause":1,"content":"FAIL","extras":{"command":"go test ./...","metadata":{"exit_code":1}}}`,
		`{"id":3,"source":"agent","action":"run","args":{"command":"go vet ./..."}}`,
	))
	require.Len(t, msgs, 3)

	assert.Equal(t, RoleAction, msgs[0].Role)
	assert.Contains(t, msgs[0].Body, "$ go test ./...")
	assert.Contains(t, msgs[0].Body, "run tests")
	assert.False(t, msgs[0].Pending, "paired action is done")

	require.NotNil(t, msgs[1].Success)
	assert.False(t, *msgs[1].Success)
	assert.Contains(t, msgs[1].Body, "FAIL")

	assert.True(t, msgs[2].Pending, "unpaired recent action is in progress")
}

func TestRenderFinish(t *testing.T) {
	r := NewPlain(250)
	msgs := r.Entries(entries(t, "",
		`{"id":1,"source":"agent","action":"finish","args":{"final_thought":"All green.","task_completed":"success","outputs":{}}}`,
	))
	require.Len(t, msgs, 1)
	assert.Equal(t, "All green.", msgs[0].Body)
	require.NotNil(t, msgs[0].Success)
	assert.True(t, *msgs[0].Success)
	assert.False(t, msgs[0].Pending)
}

func TestRenderTruncatesLongContent(t *testing.T) {
	r := NewPlain(10)
	long := strings.Repeat("y", 500)
	msgs := r.Entries(entries(t, "",
		`{"id":2,"source":"agent","observation":"read","cause":1,"content":"`+long+`","extras":{"path":"big.txt"}}`,
	))
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "[Content truncated]")
	assert.Less(t, len(msgs[0].Body), 200)
}

func TestRenderConvertsHTML(t *testing.T) {
	r := NewPlain(250)
	msgs := r.Entries(entries(t, "",
		`{"id":2,"source":"agent","observation":"browse","cause":1,"content":"<html><body><h1>Docs</h1><p>Hello <b>world</b></p></body></html>","extras":{"url":"https://example.com"}}`,
	))
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "# Docs")
	assert.Contains(t, msgs[0].Body, "**world**")
	assert.NotContains(t, msgs[0].Body, "<h1>")
}

func TestRenderFallsBackToJSON(t *testing.T) {
	r := NewPlain(250)
	msgs := r.Entries(entries(t, "",
		`{"id":4,"source":"agent","action":"teleport","args":{"where":"mars"}}`,
		`{"status_update":true,"type":"info","id":"STATUS$READY","message":"Ready"}`,
		`{"something":"else"}`,
	))
	require.Len(t, msgs, 3)

	assert.Contains(t, msgs[0].Body, "```json")
	assert.Contains(t, msgs[0].Body, `"where": "mars"`)
	assert.Contains(t, msgs[0].Body, `"action": "teleport"`)

	assert.Equal(t, RoleStatus, msgs[1].Role)
	assert.Equal(t, "Ready", msgs[1].Body)

	assert.Contains(t, msgs[2].Body, `"something": "else"`)
}

func TestRenderNilEvent(t *testing.T) {
	r := NewPlain(250)
	m := r.Entry(transcript.Entry{Kind: transcript.EntryEvent})
	assert.Equal(t, RoleStatus, m.Role)
	assert.Contains(t, m.Body, "null")
}

func TestMessageText(t *testing.T) {
	m := Message{Title: "Running command", Body: "```\n$ ls\n```", Pending: true}
	text := m.Text()
	assert.True(t, strings.HasPrefix(text, "*Running command*\n"))
	assert.Contains(t, text, "$ ls")
	assert.True(t, strings.HasSuffix(text, "_…_"))
}

func TestNewTruncates(t *testing.T) {
	r := New("gpt-4", 20)
	long := strings.Repeat("word ", 400)
	out := r.Truncate(long)
	assert.Less(t, len(out), len(long))
	assert.Equal(t, "short", r.Truncate("short"))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	r := NewPlain(1)
	out := r.Truncate("aé" + strings.Repeat("é", 10))
	assert.True(t, utf8.ValidString(out), "%q", out)
	assert.Equal(t, "aé\n\n[Content truncated]", out)

	// a cut landing right after a multi-byte rune keeps it
	out = NewPlain(1).Truncate("abé" + strings.Repeat("x", 10))
	assert.Equal(t, "abé\n\n[Content truncated]", out)
}

func TestNewTruncatesNonASCII(t *testing.T) {
	r := New("gpt-4", 7)
	out := r.Truncate(strings.Repeat("日本語のテキスト🙂 ", 200))
	assert.True(t, utf8.ValidString(out), "%q", out)
	assert.True(t, strings.HasSuffix(out, "[Content truncated]"))
}
