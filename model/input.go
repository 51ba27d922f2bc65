package model

type InputKind string

const INPUT_CONFIRM InputKind = "confirm"
const INPUT_SHORT_TEXT InputKind = "short_text"
const INPUT_FREE_TEXT InputKind = "free_text"
const INPUT_MEDIA_OR_TEXT InputKind = "media_or_text"
const INPUT_PHOTO InputKind = "photo"

func (k InputKind) Valid() bool {
	switch k {
	case INPUT_CONFIRM, INPUT_SHORT_TEXT, INPUT_FREE_TEXT, INPUT_MEDIA_OR_TEXT, INPUT_PHOTO:
		return true
	}
	return false
}

type ContentKind string

const CONTENT_TEXT ContentKind = "text"
const CONTENT_VOICE ContentKind = "voice"
const CONTENT_VIDEO_NOTE ContentKind = "video_note"
const CONTENT_PHOTO ContentKind = "photo"
const CONTENT_CONFIRM ContentKind = "confirm"
const CONTENT_OTHER ContentKind = "other"

// MediaRef points at an attachment held by the messaging platform. Data is
// only populated when the bytes are needed for detection and is never stored.
type MediaRef struct {
	FileId   string `json:"fileId"`
	Kind     string `json:"kind,omitempty"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"-"`
}

// Input is one inbound user message as seen by the controller.
type Input struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Media *MediaRef   `json:"media,omitempty"`
}

func (in Input) HasMedia() bool {
	return in.Media != nil
}
