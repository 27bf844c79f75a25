package transcript

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/deskdev/internal/event"
)

func decode(t *testing.T, raws ...string) []event.Event {
	t.Helper()
	out := make([]event.Event, 0, len(raws))
	for _, raw := range raws {
		ev, err := event.Decode([]byte(raw))
		require.NoError(t, err, raw)
		out = append(out, ev)
	}
	return out
}

func TestProjectUserMessage(t *testing.T) {
	events := decode(t, `{"id":1,"source":"user","action":"message","args":{"content":"hi"}}`)

	entries := Project(events, "")
	require.Len(t, entries, 1)
	assert.Equal(t, EntryEvent, entries[0].Kind)
	assert.Equal(t, 0, entries[0].Index)
	assert.True(t, entries[0].IsLast)
	assert.True(t, entries[0].InRecent)
	id, ok := entries[0].ID()
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestProjectHidesUserCommand(t *testing.T) {
	events := decode(t, `{"id":1,"source":"user","action":"run","args":{"command":"ls"}}`)
	assert.Empty(t, Project(events, ""))
}

func TestProjectRecall(t *testing.T) {
	events := decode(t,
		`{"id":1,"source":"agent","action":"recall","args":{"recall_type":"workspace_context","query":"x"}}`,
		`{"id":2,"source":"agent","observation":"recall","cause":1,"content":"","extras":{"recall_type":"workspace_context"}}`,
	)

	entries := Project(events, "")
	require.Len(t, entries, 1)
	id, _ := entries[0].ID()
	assert.Equal(t, int64(2), id)
	assert.Equal(t, 1, entries[0].Index)
}

func TestProjectOptimisticOnly(t *testing.T) {
	entries := Project(nil, "building...")
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, EntryOptimistic, e.Kind)
	assert.Equal(t, "user", e.Type)
	assert.Equal(t, "building...", e.Message)
	assert.Nil(t, e.Event)
	assert.Equal(t, -1, e.Index)
	_, ok := e.ID()
	assert.False(t, ok)
}

func TestProjectPairsAgainstHiddenObservations(t *testing.T) {
	// the user-run observation is hidden but still completes the action
	events := decode(t,
		`{"id":1,"source":"agent","action":"run","args":{"command":"ls"}}`,
		`{"id":2,"source":"user","observation":"run","cause":1,"content":"","extras":{}}`,
		`{"id":3,"source":"agent","action":"read","args":{"path":"a.txt"}}`,
	)

	entries := Project(events, "")
	require.Len(t, entries, 2)
	assert.True(t, entries[0].HasObservationPair)
	assert.False(t, entries[1].HasObservationPair)
	assert.False(t, entries[0].IsLast)
	assert.True(t, entries[1].IsLast)
}

func TestProjectRecentWindow(t *testing.T) {
	var raws []string
	for i := 1; i <= 14; i++ {
		raws = append(raws, fmt.Sprintf(`{"id":%d,"source":"agent","action":"think","args":{"thought":"t"}}`, i))
	}
	events := decode(t, raws...)

	entries := Project(events, "")
	require.Len(t, entries, 14)
	for i, e := range entries {
		assert.Equal(t, i >= 4, e.InRecent, "entry %d", i)
	}

	entries = Project(events, "", WithRecentWindow(3))
	for i, e := range entries {
		assert.Equal(t, i >= 11, e.InRecent, "entry %d", i)
	}

	entries = Project(events, "", WithRecentWindow(-5))
	for _, e := range entries {
		assert.False(t, e.InRecent)
	}
}

func TestProjectOptimisticDoesNotShiftLast(t *testing.T) {
	events := decode(t, `{"id":1,"source":"agent","action":"message","args":{"content":"ok"}}`)
	entries := Project(events, "next")
	require.Len(t, entries, 2)
	assert.True(t, entries[0].IsLast)
	assert.False(t, entries[1].IsLast)
}

func TestProjectLengthAndDeterminism(t *testing.T) {
	events := decode(t,
		`{"id":1,"source":"user","action":"message","args":{"content":"go"}}`,
		`{"id":2,"source":"agent","action":"system","args":{"content":"prompt"}}`,
		`{"id":3,"source":"agent","observation":"agent_state_changed","content":"","extras":{"agent_state":"running"}}`,
		`{"id":4,"source":"agent","action":"run","args":{"command":"make"}}`,
		`{"id":5,"source":"agent","observation":"run","cause":4,"content":"ok","extras":{"command":"make"}}`,
		`{"status_update":true,"type":"info","id":"STATUS$READY","message":"ready"}`,
		`{"mystery":true}`,
	)
	visible := len(event.Visible(events))

	for _, opt := range []string{"", "pending"} {
		first := Project(events, opt)
		second := Project(events, opt)
		assert.Equal(t, first, second)

		want := visible
		if opt != "" {
			want++
		}
		assert.Len(t, first, want)
	}
}

func TestProjectDoesNotModifyInput(t *testing.T) {
	events := decode(t,
		`{"id":1,"source":"user","action":"run","args":{"command":"ls"}}`,
		`{"id":2,"source":"agent","action":"think","args":{"thought":"x"}}`,
	)
	before := append([]event.Event(nil), events...)
	Project(events, "x")
	assert.Equal(t, before, events)
}

func TestOptimisticCell(t *testing.T) {
	var o Optimistic
	assert.Equal(t, "", o.Get())

	o.Set("hello")
	assert.Equal(t, "hello", o.Get())

	o.Clear()
	assert.Equal(t, "", o.Get())
}

func TestOptimisticSupersede(t *testing.T) {
	var o Optimistic
	o.Set("deploy it")

	// agent text with the same content does not count
	events := decode(t, `{"id":1,"source":"agent","action":"message","args":{"content":"deploy it"}}`)
	assert.False(t, o.Supersede(events))
	assert.Equal(t, "deploy it", o.Get())

	events = append(events, decode(t, `{"id":2,"source":"user","action":"message","args":{"content":"deploy it"}}`)...)
	assert.True(t, o.Supersede(events))
	assert.Equal(t, "", o.Get())

	assert.False(t, o.Supersede(events), "nothing left to supersede")
}

func TestOptimisticConcurrentUse(t *testing.T) {
	var o Optimistic
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.Set(fmt.Sprintf("m%d", i))
			_ = Project(nil, o.Get())
			o.Clear()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "", o.Get())
}

func TestProjectAwaitingConfirmation(t *testing.T) {
	events := decode(t,
		`{"id":1,"source":"agent","action":"run","args":{"command":"rm -rf build","confirmation_state":"awaiting_confirmation"}}`,
		`{"id":2,"source":"agent","observation":"agent_state_changed","content":"","extras":{"agent_state":"awaiting_user_confirmation"}}`,
	)
	assert.True(t, AwaitingConfirmation(events))

	entries := Project(events, "")
	require.Len(t, entries, 1)
	assert.True(t, entries[0].AwaitingConfirmation)

	events = append(events, decode(t,
		`{"id":3,"source":"agent","observation":"agent_state_changed","content":"","extras":{"agent_state":"user_confirmed"}}`,
	)...)
	assert.False(t, AwaitingConfirmation(events))
	state, ok := AgentState(events)
	assert.True(t, ok)
	assert.Equal(t, event.AgentStateUserConfirmed, state)

	_, ok = AgentState(nil)
	assert.False(t, ok)
}
