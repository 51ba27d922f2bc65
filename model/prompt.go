package model

// Prompt is the presentation contract for the active step.
type Prompt struct {
	Workflow  string         `json:"workflow"`
	StepId    string         `json:"stepId"`
	Kind      InputKind      `json:"kind"`
	Params    map[string]any `json:"params,omitempty"`
	CanGoBack bool           `json:"canGoBack"`
	CanGoNext bool           `json:"canGoNext"`
	Terminal  bool           `json:"terminal"`
	Handle    string         `json:"handle,omitempty"`
}

type Outcome struct {
	Accepted  bool         `json:"accepted"`
	Recovered bool         `json:"recovered,omitempty"`
	Verdict   *GateVerdict `json:"verdict,omitempty"`
	Prompt    *Prompt      `json:"prompt"`
}
