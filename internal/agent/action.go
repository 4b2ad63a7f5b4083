package agent

// ActionKind is the closed set of automation steps the desktop executor understands.
type ActionKind string

const (
	ActionClick          ActionKind = "click"
	ActionType           ActionKind = "type"
	ActionKeyCombo       ActionKind = "key_combo"
	ActionScroll         ActionKind = "scroll"
	ActionOpenApp        ActionKind = "open_app"
	ActionRunAppleScript ActionKind = "run_applescript"
	ActionSelectMenuItem ActionKind = "select_menu_item"
	ActionWait           ActionKind = "wait"
)

// ActionKinds lists every kind in wire order.
var ActionKinds = []ActionKind{
	ActionClick,
	ActionType,
	ActionKeyCombo,
	ActionScroll,
	ActionOpenApp,
	ActionRunAppleScript,
	ActionSelectMenuItem,
	ActionWait,
}

const (
	DefaultTimeoutMS = 3000
	MinTimeoutMS     = 100
	MaxTimeoutMS     = 120000
)

// Action represents one atomic automation step of a plan
type Action struct {
	ID              string     `json:"id"`
	Kind            ActionKind `json:"kind"`
	Target          string     `json:"target,omitempty"`
	Text            string     `json:"text,omitempty"`
	KeyCombo        string     `json:"key_combo,omitempty"`
	AppBundleID     string     `json:"app_bundle_id,omitempty"`
	TimeoutMS       int        `json:"timeout_ms"`
	Destructive     bool       `json:"destructive"`
	ExpectedOutcome string     `json:"expected_outcome,omitempty"`
}

// NewAction returns an action with the default timeout applied.
func NewAction(id string, kind ActionKind) Action {
	return Action{
		ID:        id,
		Kind:      kind,
		TimeoutMS: DefaultTimeoutMS,
	}
}

// WithID returns a structural copy of the action carrying a new identifier.
// The receiver is left untouched.
func (a Action) WithID(id string) Action {
	clone := a
	clone.ID = id
	return clone
}

// WithDefaults fills fields that were omitted on the wire.
func (a Action) WithDefaults() Action {
	if a.TimeoutMS == 0 {
		a.TimeoutMS = DefaultTimeoutMS
	}
	return a
}
