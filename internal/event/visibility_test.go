package event

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func action(id int64, source Source, tag Type) Event {
	return mustDecodeString(`{"id":` + itoa(id) + `,"source":"` + string(source) + `","action":"` + string(tag) + `","args":{}}`)
}

func observation(id, cause int64, source Source, tag Type) Event {
	return mustDecodeString(`{"id":` + itoa(id) + `,"source":"` + string(source) + `","observation":"` + string(tag) + `","cause":` + itoa(cause) + `,"content":"","extras":{}}`)
}

func mustDecodeString(raw string) Event {
	ev, err := Decode([]byte(raw))
	if err != nil {
		panic(err)
	}
	return ev
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

var allTags = []Type{
	TypeMessage, TypeSystem, TypeAgentStateChanged, TypeChangeAgentState, TypeRun,
	TypeRead, TypeWrite, TypeEdit, TypeRunIPython, TypeDelegate, TypeBrowse,
	TypeBrowseInteractive, TypeReject, TypeThink, TypeFinish, TypeError,
	TypeRecall, TypeMCP, TypeCallToolMCP, TypeUserRejected,
}

func TestShouldRenderHidesUserCommands(t *testing.T) {
	assert.False(t, ShouldRender(action(1, SourceUser, TypeRun)))
	assert.False(t, ShouldRender(observation(2, 1, SourceUser, TypeRun)))

	assert.True(t, ShouldRender(action(1, SourceAgent, TypeRun)))
	assert.True(t, ShouldRender(observation(2, 1, SourceAgent, TypeRun)))
}

func TestShouldRenderHidesUserCommandsWithMistypedFields(t *testing.T) {
	for _, raw := range []string{
		`{"id":"1","source":"user","action":"run","args":{"command":"ls"}}`,
		`{"id":2,"source":"user","action":"run","args":"ls"}`,
		`{"id":3,"source":"user","observation":"run","cause":"x","content":"","extras":{}}`,
		`{"id":"4","source":"user","observation":"run","cause":1,"content":7,"extras":[]}`,
	} {
		ev := mustDecodeString(raw)
		assert.False(t, ShouldRender(ev), "%s decoded to %T", raw, ev)
	}

	// the same shapes from the agent stay visible
	assert.True(t, ShouldRender(mustDecodeString(`{"id":3,"source":"agent","observation":"run","cause":"x","content":"","extras":{}}`)))
}

func TestShouldRenderHidesBookkeeping(t *testing.T) {
	for _, tag := range []Type{TypeSystem, TypeAgentStateChanged, TypeChangeAgentState} {
		for _, src := range []Source{SourceAgent, SourceUser, SourceEnvironment} {
			assert.False(t, ShouldRender(action(1, src, tag)), "action %s from %s", tag, src)
			assert.False(t, ShouldRender(observation(2, 1, src, tag)), "observation %s from %s", tag, src)
		}
	}
}

func TestShouldRenderRecallAsymmetry(t *testing.T) {
	assert.False(t, ShouldRender(action(1, SourceAgent, TypeRecall)))
	assert.True(t, ShouldRender(observation(2, 1, SourceAgent, TypeRecall)))
}

func TestShouldRenderShowsEverythingElse(t *testing.T) {
	hidden := map[Type]bool{TypeSystem: true, TypeAgentStateChanged: true, TypeChangeAgentState: true}
	for _, tag := range allTags {
		if hidden[tag] {
			continue
		}
		assert.True(t, ShouldRender(observation(2, 1, SourceAgent, tag)), "observation %s", tag)
		if tag != TypeRecall {
			assert.True(t, ShouldRender(action(1, SourceAgent, tag)), "action %s", tag)
		}
	}
}

func TestShouldRenderFailsOpen(t *testing.T) {
	assert.True(t, ShouldRender(StatusUpdate{StatusUpdate: true, Type: "info", ID: "x"}))
	assert.True(t, ShouldRender(mustDecodeString(`{"foo":1}`)))
	assert.True(t, ShouldRender(action(1, SourceAgent, Type("teleport"))))
	assert.True(t, ShouldRender(nil))
}

func TestShouldRenderIsPure(t *testing.T) {
	for _, tag := range allTags {
		for _, src := range []Source{SourceAgent, SourceUser, SourceEnvironment} {
			a := action(1, src, tag)
			assert.Equal(t, ShouldRender(a), ShouldRender(a))
			o := observation(2, 1, src, tag)
			assert.Equal(t, ShouldRender(o), ShouldRender(o))
		}
	}
}

func TestVisibleKeepsOrder(t *testing.T) {
	events := []Event{
		action(1, SourceAgent, TypeRecall),
		observation(2, 1, SourceAgent, TypeRecall),
		action(3, SourceUser, TypeRun),
		action(4, SourceAgent, TypeThink),
	}
	visible := Visible(events)
	assert.Len(t, visible, 2)
	h, _ := HeaderOf(visible[0])
	assert.Equal(t, int64(2), h.ID)
	h, _ = HeaderOf(visible[1])
	assert.Equal(t, int64(4), h.ID)
}
