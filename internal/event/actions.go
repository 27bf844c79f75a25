package event

// SecurityRisk is the analyzer's risk rating attached to executable actions.
type SecurityRisk int

const (
	SecurityRiskUnknown SecurityRisk = -1
	SecurityRiskLow     SecurityRisk = 0
	SecurityRiskMedium  SecurityRisk = 1
	SecurityRiskHigh    SecurityRisk = 2
)

// ConfirmationState tracks user confirmation of a risky action.
type ConfirmationState string

const (
	ConfirmationConfirmed ConfirmationState = "confirmed"
	ConfirmationRejected  ConfirmationState = "rejected"
	ConfirmationAwaiting  ConfirmationState = "awaiting_confirmation"
)

// UserMessageArgs are the args of a user-sourced message action.
type UserMessageArgs struct {
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls"`
	FileURLs  []string `json:"file_urls"`
}

// UserMessageAction is a chat message typed by the user.
type UserMessageAction struct {
	ActionHeader
	Args UserMessageArgs `json:"args"`
}

func (UserMessageAction) ActionType() Type { return TypeMessage }

// AssistantMessageArgs are the args of an agent-sourced message action.
type AssistantMessageArgs struct {
	Content         string   `json:"content,omitempty"`
	Thought         string   `json:"thought"`
	ImageURLs       []string `json:"image_urls"`
	FileURLs        []string `json:"file_urls"`
	WaitForResponse bool     `json:"wait_for_response"`
}

// AssistantMessageAction is a chat message from the agent.
type AssistantMessageAction struct {
	ActionHeader
	Args AssistantMessageArgs `json:"args"`
}

func (AssistantMessageAction) ActionType() Type { return TypeMessage }

// SystemMessageArgs describe the agent's system prompt and toolset.
type SystemMessageArgs struct {
	Content          string           `json:"content"`
	Tools            []map[string]any `json:"tools"`
	OpenHandsVersion *string          `json:"openhands_version"`
	AgentClass       *string          `json:"agent_class"`
}

// SystemMessageAction carries the system prompt of a conversation.
type SystemMessageAction struct {
	ActionHeader
	Args SystemMessageArgs `json:"args"`
}

func (SystemMessageAction) ActionType() Type { return TypeSystem }

// CommandArgs are the args of a shell command action.
type CommandArgs struct {
	Command           string            `json:"command"`
	SecurityRisk      SecurityRisk      `json:"security_risk"`
	ConfirmationState ConfirmationState `json:"confirmation_state"`
	Thought           string            `json:"thought"`
	Hidden            bool              `json:"hidden,omitempty"`
}

// CommandAction runs a shell command. Source may be agent or user.
type CommandAction struct {
	ActionHeader
	Args CommandArgs `json:"args"`
}

func (CommandAction) ActionType() Type { return TypeRun }

// IPythonArgs are the args of a Jupyter cell execution.
type IPythonArgs struct {
	Code              string            `json:"code"`
	SecurityRisk      SecurityRisk      `json:"security_risk"`
	ConfirmationState ConfirmationState `json:"confirmation_state"`
	KernelInitCode    string            `json:"kernel_init_code"`
	Thought           string            `json:"thought"`
}

// IPythonAction executes code in the sandbox kernel.
type IPythonAction struct {
	ActionHeader
	Args IPythonArgs `json:"args"`
}

func (IPythonAction) ActionType() Type { return TypeRunIPython }

// ThinkArgs hold a logged thought.
type ThinkArgs struct {
	Thought string `json:"thought"`
}

// ThinkAction records agent reasoning.
type ThinkAction struct {
	ActionHeader
	Args ThinkArgs `json:"args"`
}

func (ThinkAction) ActionType() Type { return TypeThink }

// TaskCompletion is the agent's self-assessment on finish.
type TaskCompletion string

const (
	TaskSuccess TaskCompletion = "success"
	TaskFailure TaskCompletion = "failure"
	TaskPartial TaskCompletion = "partial"
)

// FinishArgs are the args of a finish action.
type FinishArgs struct {
	FinalThought  string         `json:"final_thought"`
	TaskCompleted TaskCompletion `json:"task_completed,omitempty"`
	Outputs       map[string]any `json:"outputs"`
	Thought       string         `json:"thought"`
}

// FinishAction ends the agent's turn with a final answer.
type FinishAction struct {
	ActionHeader
	Args FinishArgs `json:"args"`
}

func (FinishAction) ActionType() Type { return TypeFinish }

// DelegateArgs name the delegated agent and its inputs.
type DelegateArgs struct {
	Agent   string            `json:"agent"`
	Inputs  map[string]string `json:"inputs"`
	Thought string            `json:"thought"`
}

// DelegateAction hands a sub-task to another agent.
type DelegateAction struct {
	ActionHeader
	Timeout float64      `json:"timeout,omitempty"`
	Args    DelegateArgs `json:"args"`
}

func (DelegateAction) ActionType() Type { return TypeDelegate }

// BrowseArgs are the args of a plain URL visit.
type BrowseArgs struct {
	URL     string `json:"url"`
	Thought string `json:"thought"`
}

// BrowseAction opens a URL.
type BrowseAction struct {
	ActionHeader
	Args BrowseArgs `json:"args"`
}

func (BrowseAction) ActionType() Type { return TypeBrowse }

// BrowseInteractiveArgs are the args of a scripted browser session.
type BrowseInteractiveArgs struct {
	BrowserActions          string  `json:"browser_actions"`
	Thought                 *string `json:"thought"`
	BrowsergymSendMsgToUser string  `json:"browsergym_send_msg_to_user"`
}

// BrowseInteractiveAction drives the browser with a script.
type BrowseInteractiveAction struct {
	ActionHeader
	Timeout float64               `json:"timeout,omitempty"`
	Args    BrowseInteractiveArgs `json:"args"`
}

func (BrowseInteractiveAction) ActionType() Type { return TypeBrowseInteractive }

// FileReadArgs are the args of a file read.
type FileReadArgs struct {
	Path         string        `json:"path"`
	Thought      string        `json:"thought"`
	SecurityRisk *SecurityRisk `json:"security_risk"`
	ImplSource   string        `json:"impl_source,omitempty"`
	ViewRange    []int         `json:"view_range,omitempty"`
}

// FileReadAction reads a file in the workspace.
type FileReadAction struct {
	ActionHeader
	Args FileReadArgs `json:"args"`
}

func (FileReadAction) ActionType() Type { return TypeRead }

// FileWriteArgs are the args of a whole-file write.
type FileWriteArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Thought string `json:"thought"`
}

// FileWriteAction writes a file in the workspace.
type FileWriteAction struct {
	ActionHeader
	Args FileWriteArgs `json:"args"`
}

func (FileWriteAction) ActionType() Type { return TypeWrite }

// FileEditArgs cover both editor-command and line-range edits; which fields
// are set depends on ImplSource.
type FileEditArgs struct {
	Path         string        `json:"path"`
	Command      string        `json:"command,omitempty"`
	FileText     *string       `json:"file_text,omitempty"`
	ViewRange    []int         `json:"view_range,omitempty"`
	OldStr       *string       `json:"old_str,omitempty"`
	NewStr       *string       `json:"new_str,omitempty"`
	InsertLine   *int          `json:"insert_line,omitempty"`
	Content      string        `json:"content,omitempty"`
	Start        int           `json:"start,omitempty"`
	End          int           `json:"end,omitempty"`
	Thought      string        `json:"thought"`
	SecurityRisk *SecurityRisk `json:"security_risk"`
	ImplSource   string        `json:"impl_source,omitempty"`
}

// FileEditAction edits a file in the workspace.
type FileEditAction struct {
	ActionHeader
	Args FileEditArgs `json:"args"`
}

func (FileEditAction) ActionType() Type { return TypeEdit }

// RejectArgs explain why the agent rejected the task.
type RejectArgs struct {
	Thought string `json:"thought"`
}

// RejectAction declines the task.
type RejectAction struct {
	ActionHeader
	Args RejectArgs `json:"args"`
}

func (RejectAction) ActionType() Type { return TypeReject }

// RecallType selects what a recall action asks for.
type RecallType string

const (
	RecallWorkspaceContext RecallType = "workspace_context"
	RecallKnowledge        RecallType = "knowledge"
)

// RecallArgs are the args of a context recall request.
type RecallArgs struct {
	RecallType RecallType `json:"recall_type"`
	Query      string     `json:"query"`
	Thought    string     `json:"thought"`
}

// RecallAction asks the memory layer for workspace context or knowledge.
type RecallAction struct {
	ActionHeader
	Args RecallArgs `json:"args"`
}

func (RecallAction) ActionType() Type { return TypeRecall }

// MCPArgs name an MCP tool and its arguments.
type MCPArgs struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Thought   string         `json:"thought,omitempty"`
}

// MCPAction calls a tool on an MCP server.
type MCPAction struct {
	ActionHeader
	Args MCPArgs `json:"args"`
}

func (MCPAction) ActionType() Type { return TypeCallToolMCP }

// ChangeAgentStateArgs request a new agent state.
type ChangeAgentStateArgs struct {
	AgentState AgentState `json:"agent_state"`
	Thought    string     `json:"thought,omitempty"`
}

// ChangeAgentStateAction asks the controller to move the agent to a state.
type ChangeAgentStateAction struct {
	ActionHeader
	Args ChangeAgentStateArgs `json:"args"`
}

func (ChangeAgentStateAction) ActionType() Type { return TypeChangeAgentState }

// UnknownAction holds an action whose tag or payload has no matching
// variant. Args keeps the decoded wire mapping.
type UnknownAction struct {
	ActionHeader
	Type Type           `json:"-"`
	Args map[string]any `json:"args"`
}

func (a UnknownAction) ActionType() Type { return a.Type }
