package identity

import (
	"strconv"
	"strings"
)

type whoKind int

const (
	kindSelf whoKind = iota
	kindID
	kindHandle
)

// Who names a user: the signed-in account, a numeric id, or a handle.
// The zero value is Self.
type Who struct {
	kind   whoKind
	id     int64
	handle string
}

// Self names the signed-in account.
func Self() Who { return Who{kind: kindSelf} }

// ID names a user by numeric id.
func ID(id int64) Who { return Who{kind: kindID, id: id} }

// Handle names a user by nickname. Numeric-looking handles are treated
// as ids.
func Handle(handle string) Who {
	handle = strings.TrimSpace(handle)
	if id, ok := numeric(handle); ok {
		return ID(id)
	}
	return Who{kind: kindHandle, handle: handle}
}

// Parse reads a Who from command-line text: empty or "me" is Self,
// digits are an id, anything else is a handle. A leading "@" is dropped.
func Parse(s string) Who {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	switch strings.ToLower(s) {
	case "", "me", "self":
		return Self()
	}
	return Handle(s)
}

// IsSelf reports whether w names the signed-in account.
func (w Who) IsSelf() bool { return w.kind == kindSelf }

// KnownID returns the id when it needs no lookup.
func (w Who) KnownID() (int64, bool) {
	if w.kind == kindID {
		return w.id, true
	}
	return 0, false
}

// String renders w for logs.
func (w Who) String() string {
	switch w.kind {
	case kindID:
		return strconv.FormatInt(w.id, 10)
	case kindHandle:
		return w.handle
	default:
		return "self"
	}
}

func numeric(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
