package model

import (
	"time"
)

type AnswerRecord struct {
	StepId     string            `json:"stepId"`
	Text       string            `json:"text,omitempty"`
	Media      *MediaRef         `json:"media,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	CapturedAt time.Time         `json:"capturedAt"`
}

// SameContent reports whether two answers carry the same text and media.
func (a AnswerRecord) SameContent(o AnswerRecord) bool {
	if a.Text != o.Text {
		return false
	}
	if (a.Media == nil) != (o.Media == nil) {
		return false
	}
	if a.Media != nil && a.Media.FileId != o.Media.FileId {
		return false
	}
	return true
}

type SessionState struct {
	Id          string                  `json:"id"`
	Workflow    string                  `json:"workflow"`
	UserId      string                  `json:"userId"`
	Current     string                  `json:"current"`
	Visited     []string                `json:"visited"`
	Answers     map[string]AnswerRecord `json:"answers"`
	EnteredFrom map[string]string       `json:"enteredFrom"`
	Forward     map[string]string       `json:"forward"`
	Approved    bool                    `json:"approved"`
	Completed   bool                    `json:"completed"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	RemindedAt  *time.Time              `json:"remindedAt,omitempty"`
}

func NewSessionState(id string, workflow string, userId string, first string, now time.Time) *SessionState {
	s := &SessionState{
		Id:          id,
		Workflow:    workflow,
		UserId:      userId,
		Current:     first,
		Answers:     make(map[string]AnswerRecord),
		EnteredFrom: make(map[string]string),
		Forward:     make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.MarkVisited(first)
	return s
}

func (s *SessionState) IsVisited(step string) bool {
	for _, v := range s.Visited {
		if v == step {
			return true
		}
	}
	return false
}

// MarkVisited appends step to the visited list unless already present.
func (s *SessionState) MarkVisited(step string) {
	if step == "" || s.IsVisited(step) {
		return
	}
	s.Visited = append(s.Visited, step)
}

// Normalize fills maps left nil by older snapshots.
func (s *SessionState) Normalize() {
	if s.Answers == nil {
		s.Answers = make(map[string]AnswerRecord)
	}
	if s.EnteredFrom == nil {
		s.EnteredFrom = make(map[string]string)
	}
	if s.Forward == nil {
		s.Forward = make(map[string]string)
	}
}

// Data exposes the session as a plain document for jsonpath lookups.
func (s *SessionState) Data() map[string]any {
	answers := make(map[string]any, len(s.Answers))
	for k, a := range s.Answers {
		entry := map[string]any{"text": a.Text}
		fields := make(map[string]any, len(a.Fields))
		for fk, fv := range a.Fields {
			fields[fk] = fv
		}
		entry["fields"] = fields
		if a.Media != nil {
			entry["media"] = map[string]any{"fileId": a.Media.FileId, "kind": a.Media.Kind}
		}
		answers[k] = entry
	}
	return map[string]any{
		"user":     map[string]any{"id": s.UserId},
		"approved": s.Approved,
		"answers":  answers,
	}
}
