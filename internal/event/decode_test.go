package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, raw string) Event {
	t.Helper()
	ev, err := Decode([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestDecodeUserMessage(t *testing.T) {
	ev := mustDecode(t, `{"id":1,"source":"user","message":"hi","timestamp":"2025-01-01T00:00:00","action":"message","args":{"content":"hi","image_urls":[],"file_urls":[]}}`)

	msg, ok := ev.(UserMessageAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, SourceUser, msg.Source)
	assert.Equal(t, "hi", msg.Args.Content)
	assert.Equal(t, TypeMessage, msg.ActionType())
}

func TestDecodeMessageSplitsOnSource(t *testing.T) {
	ev := mustDecode(t, `{"id":2,"source":"agent","action":"message","args":{"thought":"done","wait_for_response":true}}`)
	msg, ok := ev.(AssistantMessageAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "done", msg.Args.Thought)
	assert.True(t, msg.Args.WaitForResponse)

	ev = mustDecode(t, `{"id":3,"source":"environment","action":"message","args":{"content":"x"}}`)
	ua, ok := ev.(UnknownAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, TypeMessage, ua.ActionType())
	assert.Equal(t, "x", ua.Args["content"])
}

func TestDecodeCommandObservation(t *testing.T) {
	ev := mustDecode(t, `{"id":2,"source":"agent","observation":"run","cause":1,"content":"a.txt","extras":{"command":"ls","metadata":{"exit_code":0}}}`)

	obs, ok := ev.(CommandObservation)
	require.True(t, ok, "got %T", ev)
	cause, ok := obs.CauseID()
	require.True(t, ok)
	assert.Equal(t, int64(1), cause)
	assert.Equal(t, "a.txt", obs.Content)
	assert.Equal(t, "ls", obs.Extras.Command)
	code, ok := obs.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 0, code)
}

func TestDecodeObservationWithoutCause(t *testing.T) {
	ev := mustDecode(t, `{"id":5,"source":"agent","observation":"agent_state_changed","content":"","extras":{"agent_state":"running"}}`)

	obs, ok := ev.(AgentStateChangeObservation)
	require.True(t, ok, "got %T", ev)
	_, hasCause := obs.CauseID()
	assert.False(t, hasCause)
	assert.Equal(t, AgentStateRunning, obs.Extras.AgentState)
}

func TestDecodeEveryActionTag(t *testing.T) {
	cases := map[Type]Kind{
		TypeSystem:            KindSystemMessage,
		TypeRun:               KindCommandAction,
		TypeRunIPython:        KindIPythonAction,
		TypeThink:             KindThinkAction,
		TypeFinish:            KindFinishAction,
		TypeDelegate:          KindDelegateAction,
		TypeBrowse:            KindBrowseAction,
		TypeBrowseInteractive: KindBrowseInteractiveAction,
		TypeRead:              KindFileReadAction,
		TypeWrite:             KindFileWriteAction,
		TypeEdit:              KindFileEditAction,
		TypeReject:            KindRejectAction,
		TypeRecall:            KindRecallAction,
		TypeCallToolMCP:       KindMCPAction,
		TypeChangeAgentState:  KindChangeAgentStateAction,
	}
	for tag, want := range cases {
		raw := `{"id":1,"source":"agent","action":"` + string(tag) + `","args":{}}`
		ev := mustDecode(t, raw)
		assert.Equal(t, want, Classify(ev), "tag %s", tag)
		got, ok := Discriminant(ev)
		assert.True(t, ok)
		assert.Equal(t, tag, got)
	}
}

func TestDecodeEveryObservationTag(t *testing.T) {
	cases := map[Type]Kind{
		TypeAgentStateChanged: KindAgentStateChangeObservation,
		TypeRun:               KindCommandObservation,
		TypeRunIPython:        KindIPythonObservation,
		TypeDelegate:          KindDelegateObservation,
		TypeBrowse:            KindBrowseObservation,
		TypeBrowseInteractive: KindBrowseInteractiveObservation,
		TypeWrite:             KindWriteObservation,
		TypeRead:              KindReadObservation,
		TypeEdit:              KindEditObservation,
		TypeError:             KindErrorObservation,
		TypeThink:             KindThinkObservation,
		TypeRecall:            KindRecallObservation,
		TypeMCP:               KindMCPObservation,
		TypeUserRejected:      KindUserRejectedObservation,
	}
	for tag, want := range cases {
		raw := `{"id":2,"source":"agent","observation":"` + string(tag) + `","cause":1,"content":"","extras":{}}`
		ev := mustDecode(t, raw)
		assert.Equal(t, want, Classify(ev), "tag %s", tag)
		got, ok := Discriminant(ev)
		assert.True(t, ok)
		assert.Equal(t, tag, got)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	ev := mustDecode(t, `{"id":9,"source":"agent","action":"teleport","args":{"where":"mars"}}`)
	ua, ok := ev.(UnknownAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, Type("teleport"), ua.ActionType())
	assert.Equal(t, "mars", ua.Args["where"])
	assert.Equal(t, KindUnknown, Classify(ev))
	assert.True(t, IsAction(ev))

	ev = mustDecode(t, `{"id":10,"source":"agent","observation":"system","content":"prompt","extras":{}}`)
	uo, ok := ev.(UnknownObservation)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, TypeSystem, uo.ObservationType())
}

func TestDecodeMismatchedPayloadFallsBack(t *testing.T) {
	// command must be a string; the event is kept as an unknown action
	ev := mustDecode(t, `{"id":4,"source":"agent","action":"run","args":{"command":42}}`)
	ua, ok := ev.(UnknownAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, TypeRun, ua.ActionType())
	assert.Equal(t, int64(4), ua.ID)

	// args of the wrong JSON type keeps the header only
	ev = mustDecode(t, `{"id":6,"source":"agent","action":"think","args":"oops"}`)
	ua, ok = ev.(UnknownAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, int64(6), ua.ID)
	assert.Nil(t, ua.Args)
}

func TestDecodeMistypedHeaderKeepsFamily(t *testing.T) {
	ev := mustDecode(t, `{"id":"1","source":"user","action":"run","args":{"command":"ls"}}`)
	ua, ok := ev.(UnknownAction)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, TypeRun, ua.ActionType())
	assert.Equal(t, SourceUser, ua.Source)
	assert.Equal(t, int64(0), ua.ID)
	assert.Equal(t, "ls", ua.Args["command"])

	ev = mustDecode(t, `{"id":3,"source":"user","observation":"run","cause":"x","content":"a.txt","extras":{"command":"ls"}}`)
	uo, ok := ev.(UnknownObservation)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, TypeRun, uo.ObservationType())
	assert.Equal(t, SourceUser, uo.Source)
	assert.Equal(t, int64(3), uo.ID)
	assert.Nil(t, uo.Cause)
	assert.Equal(t, "a.txt", uo.Content)
	assert.Equal(t, "ls", uo.Extras["command"])
}

func TestDecodeStatusUpdate(t *testing.T) {
	ev := mustDecode(t, `{"status_update":true,"type":"info","id":"STATUS$STARTING_RUNTIME","message":"Starting runtime..."}`)
	su, ok := ev.(StatusUpdate)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "STATUS$STARTING_RUNTIME", su.ID)
	assert.Equal(t, FamilyVariance, FamilyOf(ev))
	assert.True(t, IsStatusUpdate(ev))
}

func TestDecodeUnrecognized(t *testing.T) {
	for _, raw := range []string{`{}`, `{"foo":"bar"}`, `{"status_update":true}`} {
		ev := mustDecode(t, raw)
		_, ok := ev.(Unrecognized)
		assert.True(t, ok, "%s decoded to %T", raw, ev)
		assert.Equal(t, KindUnknown, Classify(ev))
		assert.Equal(t, FamilyNone, FamilyOf(ev))
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`null`, `[]`, `42`, `"x"`, `{`} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestDecodeAllKeepsOrder(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id":1,"source":"user","action":"message","args":{"content":"a"}}`),
		json.RawMessage(`not json`),
		json.RawMessage(`{"id":2,"source":"agent","observation":"run","cause":1,"content":"","extras":{}}`),
	}
	events := DecodeAll(raws)
	require.Len(t, events, 2)
	assert.Equal(t, KindUserMessage, Classify(events[0]))
	assert.Equal(t, KindCommandObservation, Classify(events[1]))
}

func TestEncodeRestoresDiscriminant(t *testing.T) {
	ev := CommandAction{
		ActionHeader: ActionHeader{Header: Header{ID: 1, Source: SourceAgent, Message: "Running ls"}},
		Args:         CommandArgs{Command: "ls"},
	}
	data, err := Encode(ev)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "run", fields["action"])
	assert.Equal(t, "Running ls", fields["message"])

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestEncodeObservationWithCause(t *testing.T) {
	ev := RecallObservation{
		ObservationHeader: ObservationHeader{Header: Header{ID: 2, Source: SourceAgent}, Cause: CauseRef(1)},
		Extras:            RecallExtras{RecallType: RecallKnowledge},
	}
	data, err := Encode(ev)
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestHeaderTime(t *testing.T) {
	h := Header{Timestamp: "2025-03-04T05:06:07.123456"}
	ts, err := h.Time()
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())

	h.Timestamp = "2025-03-04T05:06:07Z"
	_, err = h.Time()
	assert.NoError(t, err)

	h.Timestamp = "yesterday"
	_, err = h.Time()
	assert.Error(t, err)
}
