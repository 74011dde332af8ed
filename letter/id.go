package letter

import (
	"strings"

	"github.com/google/uuid"
)

// ID identifies one letter across generation, review and delivery.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// NormalizeID rewrites a 32-character unhyphenated hex identifier into the
// 8-4-4-4-12 form. Anything else is returned unchanged.
func NormalizeID(s string) ID {
	if len(s) != 32 || strings.Contains(s, "-") || !isHex(s) {
		return ID(s)
	}
	return ID(s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32])
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Short is the prefix shown in headers.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Valid reports whether id parses as a UUID.
func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
