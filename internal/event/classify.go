package event

// Kind names the concrete variant an event decoded to.
type Kind int

const (
	// KindUnknown is the zero value: unknown tags, unrecognized objects and nil.
	KindUnknown Kind = iota

	KindUserMessage
	KindAssistantMessage
	KindSystemMessage
	KindCommandAction
	KindIPythonAction
	KindThinkAction
	KindFinishAction
	KindDelegateAction
	KindBrowseAction
	KindBrowseInteractiveAction
	KindFileReadAction
	KindFileWriteAction
	KindFileEditAction
	KindRejectAction
	KindRecallAction
	KindMCPAction
	KindChangeAgentStateAction

	KindAgentStateChangeObservation
	KindCommandObservation
	KindIPythonObservation
	KindDelegateObservation
	KindBrowseObservation
	KindBrowseInteractiveObservation
	KindWriteObservation
	KindReadObservation
	KindEditObservation
	KindErrorObservation
	KindThinkObservation
	KindRecallObservation
	KindMCPObservation
	KindUserRejectedObservation

	KindStatusUpdate
)

var kindNames = map[Kind]string{
	KindUnknown:                      "unknown",
	KindUserMessage:                  "user_message",
	KindAssistantMessage:             "assistant_message",
	KindSystemMessage:                "system_message",
	KindCommandAction:                "command_action",
	KindIPythonAction:                "ipython_action",
	KindThinkAction:                  "think_action",
	KindFinishAction:                 "finish_action",
	KindDelegateAction:               "delegate_action",
	KindBrowseAction:                 "browse_action",
	KindBrowseInteractiveAction:      "browse_interactive_action",
	KindFileReadAction:               "file_read_action",
	KindFileWriteAction:              "file_write_action",
	KindFileEditAction:               "file_edit_action",
	KindRejectAction:                 "reject_action",
	KindRecallAction:                 "recall_action",
	KindMCPAction:                    "mcp_action",
	KindChangeAgentStateAction:       "change_agent_state_action",
	KindAgentStateChangeObservation:  "agent_state_change_observation",
	KindCommandObservation:           "command_observation",
	KindIPythonObservation:           "ipython_observation",
	KindDelegateObservation:          "delegate_observation",
	KindBrowseObservation:            "browse_observation",
	KindBrowseInteractiveObservation: "browse_interactive_observation",
	KindWriteObservation:             "write_observation",
	KindReadObservation:              "read_observation",
	KindEditObservation:              "edit_observation",
	KindErrorObservation:             "error_observation",
	KindThinkObservation:             "think_observation",
	KindRecallObservation:            "recall_observation",
	KindMCPObservation:               "mcp_observation",
	KindUserRejectedObservation:      "user_rejected_observation",
	KindStatusUpdate:                 "status_update",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Classify maps an event to its variant. It never panics; anything without
// a dedicated variant is KindUnknown.
func Classify(ev Event) Kind {
	switch ev.(type) {
	case UserMessageAction:
		return KindUserMessage
	case AssistantMessageAction:
		return KindAssistantMessage
	case SystemMessageAction:
		return KindSystemMessage
	case CommandAction:
		return KindCommandAction
	case IPythonAction:
		return KindIPythonAction
	case ThinkAction:
		return KindThinkAction
	case FinishAction:
		return KindFinishAction
	case DelegateAction:
		return KindDelegateAction
	case BrowseAction:
		return KindBrowseAction
	case BrowseInteractiveAction:
		return KindBrowseInteractiveAction
	case FileReadAction:
		return KindFileReadAction
	case FileWriteAction:
		return KindFileWriteAction
	case FileEditAction:
		return KindFileEditAction
	case RejectAction:
		return KindRejectAction
	case RecallAction:
		return KindRecallAction
	case MCPAction:
		return KindMCPAction
	case ChangeAgentStateAction:
		return KindChangeAgentStateAction
	case AgentStateChangeObservation:
		return KindAgentStateChangeObservation
	case CommandObservation:
		return KindCommandObservation
	case IPythonObservation:
		return KindIPythonObservation
	case DelegateObservation:
		return KindDelegateObservation
	case BrowseObservation:
		return KindBrowseObservation
	case BrowseInteractiveObservation:
		return KindBrowseInteractiveObservation
	case WriteObservation:
		return KindWriteObservation
	case ReadObservation:
		return KindReadObservation
	case EditObservation:
		return KindEditObservation
	case ErrorObservation:
		return KindErrorObservation
	case ThinkObservation:
		return KindThinkObservation
	case RecallObservation:
		return KindRecallObservation
	case MCPObservation:
		return KindMCPObservation
	case UserRejectedObservation:
		return KindUserRejectedObservation
	case StatusUpdate:
		return KindStatusUpdate
	default:
		return KindUnknown
	}
}

// FamilyOf reports the family of ev; nil is FamilyNone.
func FamilyOf(ev Event) Family {
	if ev == nil {
		return FamilyNone
	}
	return ev.Family()
}

// IsAction reports whether ev is an action of any tag.
func IsAction(ev Event) bool { return FamilyOf(ev) == FamilyAction }

// IsObservation reports whether ev is an observation of any tag.
func IsObservation(ev Event) bool { return FamilyOf(ev) == FamilyObservation }

// IsUserMessage reports a user-sourced message action.
func IsUserMessage(ev Event) bool { return Classify(ev) == KindUserMessage }

// IsAssistantMessage reports an agent message. An agent's finish action also
// counts; callers that need to tell them apart test IsFinishAction first.
func IsAssistantMessage(ev Event) bool {
	switch Classify(ev) {
	case KindAssistantMessage:
		return true
	case KindFinishAction:
		h, _ := HeaderOf(ev)
		return h.Source == SourceAgent
	default:
		return false
	}
}

// IsFinishAction reports a finish action.
func IsFinishAction(ev Event) bool { return Classify(ev) == KindFinishAction }

// IsSystemMessage reports a system action.
func IsSystemMessage(ev Event) bool { return Classify(ev) == KindSystemMessage }

// IsCommandAction reports a run action from any source.
func IsCommandAction(ev Event) bool { return Classify(ev) == KindCommandAction }

// IsCommandObservation reports a run observation from any source.
func IsCommandObservation(ev Event) bool { return Classify(ev) == KindCommandObservation }

// IsErrorObservation reports an error observation.
func IsErrorObservation(ev Event) bool { return Classify(ev) == KindErrorObservation }

// IsAgentStateChangeObservation reports an agent_state_changed observation.
func IsAgentStateChangeObservation(ev Event) bool {
	return Classify(ev) == KindAgentStateChangeObservation
}

// IsRejectObservation reports a user_rejected observation.
func IsRejectObservation(ev Event) bool { return Classify(ev) == KindUserRejectedObservation }

// IsMCPObservation reports an mcp observation.
func IsMCPObservation(ev Event) bool { return Classify(ev) == KindMCPObservation }

// IsStatusUpdate reports a status update variance.
func IsStatusUpdate(ev Event) bool { return Classify(ev) == KindStatusUpdate }
