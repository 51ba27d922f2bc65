package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotComparableIgnoresCaptureTime(t *testing.T) {
	u := User{Id: "1", FullName: "Анна Иванова", Username: "@anna", LanguageCode: "ru"}
	a := u.Snapshot(time.Unix(0, 0))
	b := u.Snapshot(time.Unix(100, 0))
	require.Equal(t, "t.me/anna", a.Handle)
	require.Equal(t, a.Comparable(), b.Comparable())

	u.IsPremium = true
	require.NotEqual(t, a.Comparable(), u.Snapshot(time.Unix(0, 0)).Comparable())

	require.Empty(t, User{Id: "2", FullName: "x"}.Snapshot(time.Now()).Handle)
}

func TestMarkVisitedKeepsOrderWithoutDuplicates(t *testing.T) {
	s := NewSessionState("s", "wf", "u", "a", time.Now())
	s.MarkVisited("b")
	s.MarkVisited("a")
	s.MarkVisited("")
	require.Equal(t, []string{"a", "b"}, s.Visited)
	require.True(t, s.IsVisited("b"))
	require.False(t, s.IsVisited("c"))
}

func TestSessionData(t *testing.T) {
	s := NewSessionState("s", "wf", "u", "name", time.Now())
	s.Answers["name"] = AnswerRecord{StepId: "name", Text: "Анна Иванова", Fields: map[string]string{"first_name": "Анна"}}
	s.Answers["photo"] = AnswerRecord{StepId: "photo", Media: &MediaRef{FileId: "f1", Kind: "photo"}}

	data := s.Data()
	answers := data["answers"].(map[string]any)
	name := answers["name"].(map[string]any)
	require.Equal(t, "Анна", name["fields"].(map[string]any)["first_name"])
	photo := answers["photo"].(map[string]any)
	require.Equal(t, "f1", photo["media"].(map[string]any)["fileId"])
	require.Equal(t, false, data["approved"])
}

func TestNormalizeFillsMaps(t *testing.T) {
	s := &SessionState{Current: "a"}
	s.Normalize()
	require.NotNil(t, s.Answers)
	require.NotNil(t, s.EnteredFrom)
	require.NotNil(t, s.Forward)
}

func TestSameContent(t *testing.T) {
	a := AnswerRecord{Text: "hi", Media: &MediaRef{FileId: "1"}}
	require.True(t, a.SameContent(AnswerRecord{Text: "hi", Media: &MediaRef{FileId: "1"}, CapturedAt: time.Now()}))
	require.False(t, a.SameContent(AnswerRecord{Text: "hi"}))
	require.False(t, a.SameContent(AnswerRecord{Text: "hi", Media: &MediaRef{FileId: "2"}}))
}

func TestRejectCarriesMessage(t *testing.T) {
	v := Reject(REASON_MEDIA_TOO_LARGE)
	require.False(t, v.Accepted)
	require.NotEmpty(t, v.Message)
	require.Equal(t, "SOMETHING", Reason("SOMETHING").Message())
}
