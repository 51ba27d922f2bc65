// Package gate holds the pure accept/reject checks applied to a single input.
// Gates never touch session state.
package gate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mohitkumar/intake/model"
)

const MAX_MEDIA_BYTES int64 = 10 << 20

const FIELD_FIRST_NAME string = "first_name"
const FIELD_LAST_NAME string = "last_name"

const VALIDATOR_NAME string = "name"

var alphabets = map[string]*unicode.RangeTable{
	"cyrillic": unicode.Cyrillic,
	"latin":    unicode.Latin,
	"greek":    unicode.Greek,
}

// Alphabet resolves a configured alphabet name.
func Alphabet(name string) (*unicode.RangeTable, error) {
	if name == "" {
		return unicode.Cyrillic, nil
	}
	table, ok := alphabets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown alphabet %q", name)
	}
	return table, nil
}

func KnownValidator(name string) bool {
	return name == "" || name == VALIDATOR_NAME
}

// Name accepts exactly two whitespace separated tokens, each longer than one
// character and containing at least one letter from alphabet.
func Name(text string, alphabet *unicode.RangeTable) model.GateVerdict {
	tokens := strings.Fields(text)
	if len(tokens) != 2 {
		return model.Reject(model.REASON_INVALID_NAME)
	}
	for _, token := range tokens {
		if utf8.RuneCountInString(token) <= 1 || !hasLetterIn(token, alphabet) {
			return model.Reject(model.REASON_INVALID_NAME)
		}
	}
	v := model.Accept()
	v.Fields = map[string]string{
		FIELD_FIRST_NAME: tokens[0],
		FIELD_LAST_NAME:  tokens[1],
	}
	return v
}

func hasLetterIn(token string, alphabet *unicode.RangeTable) bool {
	for _, r := range token {
		if unicode.IsLetter(r) && unicode.Is(alphabet, r) {
			return true
		}
	}
	return false
}

// MediaSize accepts inputs without media and attachments of at most max bytes.
// The larger of the declared size and the bytes actually carried counts.
func MediaSize(in model.Input, max int64) model.GateVerdict {
	if !in.HasMedia() {
		return model.Accept()
	}
	size := in.Media.Size
	if n := int64(len(in.Media.Data)); n > size {
		size = n
	}
	if size > max {
		return model.Reject(model.REASON_MEDIA_TOO_LARGE)
	}
	return model.Accept()
}

var allowedContent = map[model.InputKind][]model.ContentKind{
	model.INPUT_CONFIRM:       {model.CONTENT_CONFIRM},
	model.INPUT_SHORT_TEXT:    {model.CONTENT_TEXT},
	model.INPUT_FREE_TEXT:     {model.CONTENT_TEXT},
	model.INPUT_MEDIA_OR_TEXT: {model.CONTENT_TEXT, model.CONTENT_VOICE, model.CONTENT_VIDEO_NOTE},
	model.INPUT_PHOTO:         {model.CONTENT_PHOTO},
}

// ContentKind checks the input against what the step kind accepts. A
// confirmable photo step also takes a confirm.
func ContentKind(kind model.InputKind, confirmable bool, in model.Input) model.GateVerdict {
	if kind == model.INPUT_PHOTO && confirmable && in.Kind == model.CONTENT_CONFIRM {
		return model.Accept()
	}
	for _, allowed := range allowedContent[kind] {
		if in.Kind != allowed {
			continue
		}
		switch allowed {
		case model.CONTENT_TEXT:
			if strings.TrimSpace(in.Text) == "" {
				return model.Reject(model.REASON_WRONG_CONTENT)
			}
		case model.CONTENT_VOICE, model.CONTENT_VIDEO_NOTE, model.CONTENT_PHOTO:
			if !in.HasMedia() {
				return model.Reject(model.REASON_WRONG_CONTENT)
			}
		}
		return model.Accept()
	}
	return model.Reject(model.REASON_WRONG_CONTENT)
}
