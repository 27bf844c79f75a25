package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotObject is returned by Decode for JSON that is not an object.
var ErrNotObject = errors.New("event is not a JSON object")

type decoder func(data []byte) (Event, error)

func variant[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// message is split on source, so it is resolved in decodeAction.
var actionDecoders = map[Type]decoder{
	TypeSystem:            variant[SystemMessageAction],
	TypeRun:               variant[CommandAction],
	TypeRunIPython:        variant[IPythonAction],
	TypeThink:             variant[ThinkAction],
	TypeFinish:            variant[FinishAction],
	TypeDelegate:          variant[DelegateAction],
	TypeBrowse:            variant[BrowseAction],
	TypeBrowseInteractive: variant[BrowseInteractiveAction],
	TypeRead:              variant[FileReadAction],
	TypeWrite:             variant[FileWriteAction],
	TypeEdit:              variant[FileEditAction],
	TypeReject:            variant[RejectAction],
	TypeRecall:            variant[RecallAction],
	TypeCallToolMCP:       variant[MCPAction],
	TypeChangeAgentState:  variant[ChangeAgentStateAction],
}

var observationDecoders = map[Type]decoder{
	TypeAgentStateChanged: variant[AgentStateChangeObservation],
	TypeRun:               variant[CommandObservation],
	TypeRunIPython:        variant[IPythonObservation],
	TypeDelegate:          variant[DelegateObservation],
	TypeBrowse:            variant[BrowseObservation],
	TypeBrowseInteractive: variant[BrowseInteractiveObservation],
	TypeWrite:             variant[WriteObservation],
	TypeRead:              variant[ReadObservation],
	TypeEdit:              variant[EditObservation],
	TypeError:             variant[ErrorObservation],
	TypeThink:             variant[ThinkObservation],
	TypeRecall:            variant[RecallObservation],
	TypeMCP:               variant[MCPObservation],
	TypeUserRejected:      variant[UserRejectedObservation],
}

// Decode converts one wire event into its variant. Objects carrying an
// "action" key are actions, objects carrying "observation" are
// observations, objects carrying status_update, type and id are status
// updates. Unknown tags and payloads that do not fit their variant decode
// to UnknownAction or UnknownObservation; anything else becomes
// Unrecognized. The only error is input that is not a JSON object.
func Decode(data []byte) (Event, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if top == nil {
		return nil, ErrNotObject
	}

	if tag, ok := top["action"]; ok {
		return decodeAction(data, tagOf(tag)), nil
	}
	if tag, ok := top["observation"]; ok {
		return decodeObservation(data, tagOf(tag)), nil
	}
	_, hasStatus := top["status_update"]
	_, hasType := top["type"]
	_, hasID := top["id"]
	if hasStatus && hasType && hasID {
		var su StatusUpdate
		if err := json.Unmarshal(data, &su); err == nil {
			return su, nil
		}
	}
	return unrecognized(data), nil
}

// DecodeAll decodes a batch in order, dropping entries that are not objects.
func DecodeAll(raws []json.RawMessage) []Event {
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		ev, err := Decode(raw)
		if err != nil {
			slog.Debug("dropping undecodable event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

func tagOf(raw json.RawMessage) Type {
	var tag Type
	if err := json.Unmarshal(raw, &tag); err != nil {
		return ""
	}
	return tag
}

func decodeAction(data []byte, tag Type) Event {
	dec, ok := actionDecoders[tag]
	if tag == TypeMessage {
		dec, ok = messageDecoder(data)
	}
	if ok {
		ev, err := dec(data)
		if err == nil {
			return ev
		}
		slog.Debug("action payload does not fit its variant", "action", tag, "error", err)
	}

	var ua UnknownAction
	if err := json.Unmarshal(data, &ua); err != nil {
		fields := rawFields(data)
		ua = UnknownAction{ActionHeader: ActionHeader{Header: lenientHeader(fields)}}
		decodeField(fields, "args", &ua.Args)
	}
	ua.Type = tag
	return ua
}

func messageDecoder(data []byte) (decoder, bool) {
	var hdr Header
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, false
	}
	switch hdr.Source {
	case SourceUser:
		return variant[UserMessageAction], true
	case SourceAgent:
		return variant[AssistantMessageAction], true
	default:
		return nil, false
	}
}

func decodeObservation(data []byte, tag Type) Event {
	if dec, ok := observationDecoders[tag]; ok {
		ev, err := dec(data)
		if err == nil {
			return ev
		}
		slog.Debug("observation payload does not fit its variant", "observation", tag, "error", err)
	}

	var uo UnknownObservation
	if err := json.Unmarshal(data, &uo); err != nil {
		fields := rawFields(data)
		uo = UnknownObservation{ObservationHeader: ObservationHeader{Header: lenientHeader(fields)}}
		decodeField(fields, "cause", &uo.Cause)
		decodeField(fields, "content", &uo.Content)
		decodeField(fields, "extras", &uo.Extras)
	}
	uo.Type = tag
	return uo
}

// rawFields splits an object into its top-level fields. Callers have
// already checked data is an object.
func rawFields(data []byte) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(data, &fields)
	return fields
}

// lenientHeader decodes each header field on its own, so one mistyped
// field (an "id" sent as a string) leaves the source and the rest intact.
func lenientHeader(fields map[string]json.RawMessage) Header {
	var h Header
	decodeField(fields, "id", &h.ID)
	decodeField(fields, "source", &h.Source)
	decodeField(fields, "message", &h.Message)
	decodeField(fields, "timestamp", &h.Timestamp)
	return h
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Debug("ignoring mistyped event field", "field", key, "error", err)
		return
	}
	*dst = v
}

func unrecognized(data []byte) Unrecognized {
	return Unrecognized{Raw: json.RawMessage(bytes.Clone(data))}
}

// Encode renders ev back to its wire form, restoring the discriminant.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Action:
		return withTag(e, "action", e.ActionType())
	case Observation:
		return withTag(e, "observation", e.ObservationType())
	case Unrecognized:
		return e.Raw, nil
	default:
		return json.Marshal(ev)
	}
}

func withTag(v any, key string, tag Type) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	t, err := json.Marshal(tag)
	if err != nil {
		return nil, fmt.Errorf("encode event tag: %w", err)
	}
	fields[key] = t
	return json.Marshal(fields)
}
