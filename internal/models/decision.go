package models

// ActionKind is one atomic browser interaction, or the sentinel "complete"
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionType     ActionKind = "type"
	ActionScroll   ActionKind = "scroll"
	ActionNavigate ActionKind = "navigate"
	ActionWait     ActionKind = "wait"
	ActionComplete ActionKind = "complete"
	// ActionScreenshot only appears in the scripted protocol log, never in
	// model decisions.
	ActionScreenshot ActionKind = "screenshot"
)

// Valid reports whether the kind is one the model is allowed to return
func (a ActionKind) Valid() bool {
	switch a {
	case ActionClick, ActionType, ActionScroll, ActionNavigate, ActionWait, ActionComplete:
		return true
	}
	return false
}

// Decision is the structured action returned by the vision model
type Decision struct {
	Action    ActionKind `json:"action"`
	Target    string     `json:"target,omitempty"`
	Value     string     `json:"value,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// PageContext is the textual page state sent alongside a screenshot when
// asking the model for the next action.
type PageContext struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	ViewportWidth  int      `json:"viewportWidth"`
	ViewportHeight int      `json:"viewportHeight"`
	RecentActions  []string `json:"recentActions,omitempty"`
	Links          []string `json:"links,omitempty"`
	Headings       []string `json:"headings,omitempty"`
}
