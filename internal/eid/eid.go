// Package eid provides the entity identifier used as the key of every
// tracked item.
package eid

import (
	"crypto/md5" //nolint:gosec // G501: name based UUIDs (RFC 4122 version 3) are defined over MD5
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrEmpty is returned when an identifier is created from an empty string.
var ErrEmpty = errors.New("eid: identifier must not be empty")

// EID is an immutable entity identifier. Two EIDs are equal iff their string
// forms are equal, so EID can be used directly as a map key.
type EID struct {
	id string
}

// New creates an EID that preserves s.
func New(s string) (EID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EID{}, ErrEmpty
	}
	return EID{id: s}, nil
}

// MustNew is like New but panics on an empty string. Intended for constants
// and tests.
func MustNew(s string) EID {
	id, err := New(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier as given on construction.
func (e EID) String() string {
	return e.id
}

// IsZero reports whether e is the zero value.
func (e EID) IsZero() bool {
	return e.id == ""
}

// UUID returns the UUID representation. Identifiers that already are UUIDs
// are parsed, anything else is mapped to a version 3 name based UUID of its
// bytes.
func (e EID) UUID() uuid.UUID {
	if len(e.id) == 36 {
		if u, err := uuid.Parse(e.id); err == nil {
			return u
		}
	}
	return nameUUID([]byte(e.id))
}

// Compare orders identifiers by their string form.
func (e EID) Compare(other EID) int {
	return strings.Compare(e.id, other.id)
}

// MarshalText implements encoding.TextMarshaler.
func (e EID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EID) UnmarshalText(b []byte) error {
	id, err := New(string(b))
	if err != nil {
		return err
	}
	*e = id
	return nil
}

// nameUUID hashes b without a namespace, matching the UUIDs other tools in
// the conformance ecosystem derive from plain names.
func nameUUID(b []byte) uuid.UUID {
	sum := md5.Sum(b) //nolint:gosec // see import
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.UUID(sum)
}

// Parse converts a list of strings into EIDs, skipping blank entries.
func Parse(values ...string) []EID {
	ids := make([]EID, 0, len(values))
	for _, v := range values {
		if id, err := New(v); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Sort sorts ids in place by their string form.
func Sort(ids []EID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].id < ids[j].id })
}

// Strings returns the string forms of ids.
func Strings(ids []EID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.id
	}
	return out
}
