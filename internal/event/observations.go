package event

// AgentState is the controller state reported by agent_state_changed.
type AgentState string

const (
	AgentStateLoading              AgentState = "loading"
	AgentStateInit                 AgentState = "init"
	AgentStateRunning              AgentState = "running"
	AgentStateAwaitingUserInput    AgentState = "awaiting_user_input"
	AgentStatePaused               AgentState = "paused"
	AgentStateStopped              AgentState = "stopped"
	AgentStateFinished             AgentState = "finished"
	AgentStateRejected             AgentState = "rejected"
	AgentStateError                AgentState = "error"
	AgentStateRateLimited          AgentState = "rate_limited"
	AgentStateAwaitingConfirmation AgentState = "awaiting_user_confirmation"
	AgentStateUserConfirmed        AgentState = "user_confirmed"
	AgentStateUserRejected         AgentState = "user_rejected"
)

// AgentStateChangedExtras report the new controller state.
type AgentStateChangedExtras struct {
	AgentState AgentState `json:"agent_state"`
	Reason     string     `json:"reason,omitempty"`
}

// AgentStateChangeObservation announces a controller state transition.
type AgentStateChangeObservation struct {
	ObservationHeader
	Extras AgentStateChangedExtras `json:"extras"`
}

func (AgentStateChangeObservation) ObservationType() Type { return TypeAgentStateChanged }

// CommandExtras describe a finished shell command. Metadata is open-ended
// (exit code, working directory, prompt decorations).
type CommandExtras struct {
	Command  string         `json:"command"`
	Hidden   bool           `json:"hidden,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// CommandObservation is the output of a shell command. Source may be agent or user.
type CommandObservation struct {
	ObservationHeader
	Extras CommandExtras `json:"extras"`
}

func (CommandObservation) ObservationType() Type { return TypeRun }

// ExitCode reads metadata.exit_code, reporting false when absent.
func (o CommandObservation) ExitCode() (int, bool) {
	v, ok := o.Extras.Metadata["exit_code"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IPythonExtras describe an executed cell.
type IPythonExtras struct {
	Code      string   `json:"code"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// IPythonObservation is the output of a Jupyter cell.
type IPythonObservation struct {
	ObservationHeader
	Extras IPythonExtras `json:"extras"`
}

func (IPythonObservation) ObservationType() Type { return TypeRunIPython }

// DelegateExtras carry the delegate's outputs.
type DelegateExtras struct {
	Outputs map[string]any `json:"outputs"`
}

// DelegateObservation reports a delegated agent's result.
type DelegateObservation struct {
	ObservationHeader
	Extras DelegateExtras `json:"extras"`
}

func (DelegateObservation) ObservationType() Type { return TypeDelegate }

// BrowserExtras are shared by browse and browse_interactive observations.
type BrowserExtras struct {
	URL                    string         `json:"url"`
	Screenshot             string         `json:"screenshot"`
	Error                  bool           `json:"error"`
	OpenPageURLs           []string       `json:"open_page_urls"`
	ActivePageIndex        int            `json:"active_page_index"`
	DOMObject              map[string]any `json:"dom_object"`
	AXTreeObject           map[string]any `json:"axtree_object"`
	ExtraElementProperties map[string]any `json:"extra_element_properties"`
	LastBrowserAction      string         `json:"last_browser_action"`
	LastBrowserActionError any            `json:"last_browser_action_error"`
	FocusedElementBID      string         `json:"focused_element_bid"`
}

// BrowseObservation is the page state after a URL visit.
type BrowseObservation struct {
	ObservationHeader
	Extras BrowserExtras `json:"extras"`
}

func (BrowseObservation) ObservationType() Type { return TypeBrowse }

// BrowseInteractiveObservation is the page state after a browser script.
type BrowseInteractiveObservation struct {
	ObservationHeader
	Extras BrowserExtras `json:"extras"`
}

func (BrowseInteractiveObservation) ObservationType() Type { return TypeBrowseInteractive }

// WriteExtras describe a written file.
type WriteExtras struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteObservation confirms a file write.
type WriteObservation struct {
	ObservationHeader
	Extras WriteExtras `json:"extras"`
}

func (WriteObservation) ObservationType() Type { return TypeWrite }

// ReadExtras describe a read file.
type ReadExtras struct {
	Path       string `json:"path"`
	ImplSource string `json:"impl_source"`
}

// ReadObservation carries file contents in Content.
type ReadObservation struct {
	ObservationHeader
	Extras ReadExtras `json:"extras"`
}

func (ReadObservation) ObservationType() Type { return TypeRead }

// EditExtras describe an applied edit.
type EditExtras struct {
	Path       string `json:"path"`
	Diff       string `json:"diff"`
	ImplSource string `json:"impl_source"`
}

// EditObservation reports the diff of a file edit.
type EditObservation struct {
	ObservationHeader
	Extras EditExtras `json:"extras"`
}

func (EditObservation) ObservationType() Type { return TypeEdit }

// ErrorExtras optionally carry a translation id for the error.
type ErrorExtras struct {
	ErrorID string `json:"error_id,omitempty"`
}

// ErrorObservation reports a failure surfaced to the user.
type ErrorObservation struct {
	ObservationHeader
	Extras ErrorExtras `json:"extras"`
}

func (ErrorObservation) ObservationType() Type { return TypeError }

// ThinkExtras hold the echoed thought.
type ThinkExtras struct {
	Thought string `json:"thought"`
}

// ThinkObservation acknowledges a think action.
type ThinkObservation struct {
	ObservationHeader
	Extras ThinkExtras `json:"extras"`
}

func (ThinkObservation) ObservationType() Type { return TypeThink }

// MicroagentKnowledge is one knowledge snippet triggered by a recall.
type MicroagentKnowledge struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Content string `json:"content"`
}

// RecallExtras are all optional; which are present depends on RecallType.
type RecallExtras struct {
	RecallType                  RecallType            `json:"recall_type,omitempty"`
	RepoName                    string                `json:"repo_name,omitempty"`
	RepoDirectory               string                `json:"repo_directory,omitempty"`
	RepoInstructions            string                `json:"repo_instructions,omitempty"`
	RuntimeHosts                map[string]int        `json:"runtime_hosts,omitempty"`
	CustomSecretsDescriptions   map[string]string     `json:"custom_secrets_descriptions,omitempty"`
	AdditionalAgentInstructions string                `json:"additional_agent_instructions,omitempty"`
	Date                        string                `json:"date,omitempty"`
	MicroagentKnowledge         []MicroagentKnowledge `json:"microagent_knowledge,omitempty"`
}

// RecallObservation returns recalled workspace context or knowledge.
type RecallObservation struct {
	ObservationHeader
	Extras RecallExtras `json:"extras"`
}

func (RecallObservation) ObservationType() Type { return TypeRecall }

// MCPExtras echo the called tool.
type MCPExtras struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// MCPObservation carries an MCP tool result in Content.
type MCPObservation struct {
	ObservationHeader
	Extras MCPExtras `json:"extras"`
}

func (MCPObservation) ObservationType() Type { return TypeMCP }

// UserRejectedObservation records that the user refused a pending action.
type UserRejectedObservation struct {
	ObservationHeader
	Extras map[string]any `json:"extras"`
}

func (UserRejectedObservation) ObservationType() Type { return TypeUserRejected }

// UnknownObservation holds an observation whose tag or payload has no
// matching variant.
type UnknownObservation struct {
	ObservationHeader
	Type   Type           `json:"-"`
	Extras map[string]any `json:"extras"`
}

func (o UnknownObservation) ObservationType() Type { return o.Type }
