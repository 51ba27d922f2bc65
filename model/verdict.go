package model

type Reason string

const REASON_INVALID_NAME Reason = "INVALID_NAME"
const REASON_MEDIA_TOO_LARGE Reason = "MEDIA_TOO_LARGE"
const REASON_WRONG_CONTENT Reason = "WRONG_CONTENT"
const REASON_SUBJECT_NOT_DETECTED Reason = "SUBJECT_NOT_DETECTED"
const REASON_MULTIPLE_SUBJECTS Reason = "MULTIPLE_SUBJECTS"
const REASON_SUBJECT_TOO_SMALL Reason = "SUBJECT_TOO_SMALL"
const REASON_DETECTION_FAILED Reason = "DETECTION_FAILED"
const REASON_DETECTOR_UNAVAILABLE Reason = "DETECTOR_UNAVAILABLE"

var reasonMessages = map[Reason]string{
	REASON_INVALID_NAME:         "Please send your first and last name, for example: Анна Иванова.",
	REASON_MEDIA_TOO_LARGE:      "The file is too large, the limit is 10 MB. Please send a smaller one.",
	REASON_WRONG_CONTENT:        "This step does not accept that kind of message.",
	REASON_SUBJECT_NOT_DETECTED: "No face was found on the photo. Please send another one.",
	REASON_MULTIPLE_SUBJECTS:    "There are several faces on the photo. Please send a photo with only you.",
	REASON_SUBJECT_TOO_SMALL:    "The face is too small on the photo. Please send a closer one.",
	REASON_DETECTION_FAILED:     "The photo could not be processed. Please try another one.",
	REASON_DETECTOR_UNAVAILABLE: "Photo checking is temporarily unavailable. Please try again later.",
}

func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// GateVerdict is the result of one gate. It is never persisted.
type GateVerdict struct {
	Accepted bool              `json:"accepted"`
	Reason   Reason            `json:"reason,omitempty"`
	Message  string            `json:"message,omitempty"`
	Ratio    float64           `json:"ratio,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func Accept() GateVerdict {
	return GateVerdict{Accepted: true}
}

func Reject(reason Reason) GateVerdict {
	return GateVerdict{Reason: reason, Message: reason.Message()}
}

func RejectWithMessage(reason Reason, message string) GateVerdict {
	return GateVerdict{Reason: reason, Message: message}
}
