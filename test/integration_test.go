//go:build integration

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/deskdev/internal/delivery"
	"github.com/user/deskdev/internal/gateway"
	"github.com/user/deskdev/internal/httpapi"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/state"
	"github.com/user/deskdev/internal/types"
	"github.com/user/deskdev/pkg/api"
)

// platform is a minimal agent server: every user message is echoed back
// as an event and answered by a command the agent runs plus its output.
type platform struct {
	mu     sync.Mutex
	events []map[string]any
}

func (p *platform) appendLocked(ev map[string]any) int64 {
	id := int64(len(p.events))
	ev["id"] = id
	ev["timestamp"] = time.Now().UTC().Format("2006-01-02T15:04:05.000000")
	p.events = append(p.events, ev)
	return id
}

func (p *platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/conversations":
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"conversation_id": "c1", "title": "Fix the build", "status": "RUNNING"}},
		})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/events"):
		start, _ := strconv.ParseInt(r.URL.Query().Get("start_id"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		p.mu.Lock()
		var out []map[string]any
		hasMore := false
		for _, ev := range p.events {
			if ev["id"].(int64) < start {
				continue
			}
			if limit > 0 && len(out) == limit {
				hasMore = true
				break
			}
			out = append(out, ev)
		}
		p.mu.Unlock()
		if out == nil {
			out = []map[string]any{}
		}
		json.NewEncoder(w).Encode(map[string]any{"events": out, "has_more": hasMore})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
		var body struct {
			Action string         `json:"action"`
			Args   map[string]any `json:"args"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.mu.Lock()
		p.appendLocked(map[string]any{"source": "user", "action": body.Action, "args": body.Args, "message": body.Args["content"]})
		run := p.appendLocked(map[string]any{"source": "agent", "action": "run", "args": map[string]any{"command": "make"}})
		p.appendLocked(map[string]any{"source": "agent", "observation": "run", "cause": run, "content": "ok", "extras": map[string]any{"command": "make", "metadata": map[string]any{"exit_code": 0}}})
		p.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))

	default:
		http.NotFound(w, r)
	}
}

type recorder struct {
	mu   sync.Mutex
	msgs []render.Message
}

func (r *recorder) handler(_ types.DeliveryKey, msg render.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type transcriptEntry struct {
	Kind               string `json:"kind"`
	EventID            *int64 `json:"event_id"`
	HasObservationPair bool   `json:"has_observation_pair"`
	Role               string `json:"role"`
	Pending            bool   `json:"pending"`
}

func getTranscript(t *testing.T, base string) []transcriptEntry {
	t.Helper()
	resp, err := http.Get(base + "/api/conversations/c1/transcript")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []transcriptEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	return entries
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEndToEnd(t *testing.T) {
	remote := httptest.NewServer(&platform{})
	defer remote.Close()

	dir := t.TempDir()
	conversations := state.NewConversationStore(dir)
	events := state.NewEventStore(dir)
	client := api.New(api.Config{BaseURL: remote.URL})

	rec := &recorder{}
	reg := delivery.NewRegistry()
	reg.Register("test", rec.handler)

	renderer := render.NewPlain(200)
	gw := gateway.New(client, conversations, events, renderer, reg, gateway.Options{
		PollInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gw.Start(ctx)
	defer gw.Stop()

	n, err := gw.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 synced conversation, got %d", n)
	}

	local := httptest.NewServer(httpapi.NewServer(gw, conversations, events, renderer))
	defer local.Close()

	resp, err := http.Post(local.URL+"/api/conversations/c1/follow", "application/json", strings.NewReader(`{"delivery_key":"test"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("follow: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Post(local.URL+"/api/conversations/c1/messages", "application/json", strings.NewReader(`{"content":"please fix it"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("send: expected 202, got %d", resp.StatusCode)
	}

	waitFor(t, "three delivered events", func() bool { return rec.len() >= 3 })

	// once the echo arrives the pending message is gone
	waitFor(t, "optimistic message to clear", func() bool {
		for _, e := range getTranscript(t, local.URL) {
			if e.Kind == "optimistic" {
				return false
			}
		}
		return true
	})

	entries := getTranscript(t, local.URL)
	if len(entries) != 3 {
		t.Fatalf("expected 3 transcript entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Role != string(render.RoleUser) {
		t.Errorf("expected first entry from user, got %q", entries[0].Role)
	}
	if !entries[1].HasObservationPair {
		t.Error("expected the command to be paired with its output")
	}

	count, err := events.Count(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored events, got %d", count)
	}

	idx, err := conversations.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if idx.Title != "Fix the build" {
		t.Errorf("expected synced title, got %q", idx.Title)
	}
	if idx.DeliveryKey != "test" {
		t.Errorf("expected delivery key to be recorded, got %q", idx.DeliveryKey)
	}
	t.Logf("delivered %d messages", rec.len())
}
