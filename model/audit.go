package model

import (
	"strings"
	"time"
)

const ACTION_START string = "start"
const ACTION_RESTART string = "restart"
const ACTION_BACK string = "back"
const ACTION_NEXT string = "next"
const ACTION_EDIT string = "edit"
const ACTION_REMIND string = "remind"

type AuditEvent struct {
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

type User struct {
	Id           string `json:"id"`
	FullName     string `json:"fullName,omitempty"`
	Username     string `json:"username,omitempty"`
	IsPremium    bool   `json:"isPremium,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type ProfileSnapshot struct {
	FullName     string    `json:"fullName"`
	Handle       string    `json:"handle"`
	IsPremium    bool      `json:"isPremium"`
	LanguageCode string    `json:"languageCode"`
	CapturedAt   time.Time `json:"capturedAt"`
}

const HANDLE_PREFIX string = "t.me/"

func (u User) Snapshot(now time.Time) ProfileSnapshot {
	handle := ""
	if u.Username != "" {
		handle = HANDLE_PREFIX + strings.TrimPrefix(u.Username, "@")
	}
	return ProfileSnapshot{
		FullName:     u.FullName,
		Handle:       handle,
		IsPremium:    u.IsPremium,
		LanguageCode: u.LanguageCode,
		CapturedAt:   now,
	}
}

type ProfileKey struct {
	FullName     string
	Handle       string
	IsPremium    bool
	LanguageCode string
}

// Comparable is the tuple used for change detection; CapturedAt is ignored.
func (p ProfileSnapshot) Comparable() ProfileKey {
	return ProfileKey{
		FullName:     p.FullName,
		Handle:       p.Handle,
		IsPremium:    p.IsPremium,
		LanguageCode: p.LanguageCode,
	}
}
