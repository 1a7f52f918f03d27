// Package idx generates the identifiers of persisted entities: credentials,
// clients, authenticators, token sets and signing keys. They are ULIDs, so
// ids sort in creation order and leak nothing but a millisecond timestamp.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a canonical ULID string.
type ID string

func (id ID) String() string { return string(id) }

// ErrInvalid reports a malformed id.
var ErrInvalid = errors.New("idx: invalid id")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns an id for the current time.
func New() ID {
	return NewAt(time.Now().UTC())
}

// NewAt returns an id stamped with t. Ids generated within one millisecond
// still sort in generation order.
func NewAt(t time.Time) ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Timestamp(t), entropy).String())
}

// Parse accepts s, ignoring surrounding space, if it is a canonical ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	u, err := ulid.ParseStrict(s)
	if err != nil || u.String() != s {
		return "", ErrInvalid
	}
	return ID(s), nil
}
