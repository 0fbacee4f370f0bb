// Package naming encodes and decodes message-body file names.
//
// A message body's identity, kind and lifecycle state live entirely in its
// file name, so the name is both the persisted format shared with producers
// and consumers and the lock the collectors contend for:
//
//	<identity>.<kind>[.<lock timestamp>.<state token>]
//
//	da39a3ee5e6b4b0d3255bfef95601890afd80709.trk
//	da39a3ee5e6b4b0d3255bfef95601890afd80709.trk.20240131235959123.locked
//
// Identity is 40 hexadecimal characters. Kind is "trk" (tracked) or "chk"
// (claimed). The timestamp is UTC in the fixed-width yyyyMMddHHmmssfff layout
// so that names sort chronologically. The state token is one of "locked",
// "gathered" or "released".
//
// [Parse] never panics: anything that does not follow the grammar yields an
// error wrapping errors.ErrInvalidFilename, which callers skip.
package naming

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/claimstore/agent/internal/errors"
)

// IdentityLength is the number of hex characters in a content identity.
const IdentityLength = 40

// TimestampLength is the width of an encoded lock timestamp.
const TimestampLength = 17

// Kind selects how a message body is collected.
type Kind string

const (
	// KindTracked bodies are gathered into the central directory.
	KindTracked Kind = "trk"
	// KindClaimed bodies are released in place.
	KindClaimed Kind = "chk"
)

// Kinds returns every recognized kind.
func Kinds() []Kind { return []Kind{KindTracked, KindClaimed} }

// ParseKind converts an extension into a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindTracked, KindClaimed:
		return Kind(s), true
	default:
		return "", false
	}
}

// State is the lifecycle state carried by a file name.
type State string

const (
	// StateUnlocked has no suffix; it is how producers drop files.
	StateUnlocked State = ""
	StateLocked   State = "locked"
	StateGathered State = "gathered"
	StateReleased State = "released"
)

// String returns the token, or "unlocked" for the suffix-less state.
func (s State) String() string {
	if s == StateUnlocked {
		return "unlocked"
	}
	return string(s)
}

// ParseState converts a state token into a State. The empty state is not a
// token and is rejected.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateLocked, StateGathered, StateReleased:
		return State(s), true
	default:
		return "", false
	}
}

// Lock is the optional lifecycle suffix of a name.
type Lock struct {
	Timestamp time.Time
	State     State
}

// Name is a decoded message-body file name.
type Name struct {
	Identity string
	Kind     Kind
	// Lock is nil for unlocked files.
	Lock *Lock
}

// New returns the unlocked name for identity and kind.
func New(identity string, kind Kind) (Name, error) {
	n := Name{Identity: identity, Kind: kind}
	if err := n.validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

// Parse decodes a base file name. It returns an error wrapping
// errors.ErrInvalidFilename for anything outside the grammar.
func Parse(name string) (Name, error) {
	parts := strings.Split(name, ".")
	if len(parts) != 2 && len(parts) != 4 {
		return Name{}, errors.NewFilenameError(name, fmt.Sprintf("expected 2 or 4 segments, got %d", len(parts)))
	}
	if !isIdentity(parts[0]) {
		return Name{}, errors.NewFilenameError(name, "identity is not 40 hex characters")
	}
	kind, ok := ParseKind(parts[1])
	if !ok {
		return Name{}, errors.NewFilenameError(name, fmt.Sprintf("unknown kind %q", parts[1]))
	}
	n := Name{Identity: parts[0], Kind: kind}
	if len(parts) == 2 {
		return n, nil
	}

	ts, err := ParseTimestamp(parts[2])
	if err != nil {
		return Name{}, errors.NewFilenameError(name, err.Error())
	}
	state, ok := ParseState(parts[3])
	if !ok {
		return Name{}, errors.NewFilenameError(name, fmt.Sprintf("unknown state %q", parts[3]))
	}
	n.Lock = &Lock{Timestamp: ts, State: state}
	return n, nil
}

// String encodes the name. It is the inverse of Parse for every valid Name
// whose timestamp is already at encodable precision (see Stamp).
func (n Name) String() string {
	base := n.Identity + "." + string(n.Kind)
	if n.Lock == nil {
		return base
	}
	return base + "." + FormatTimestamp(n.Lock.Timestamp) + "." + string(n.Lock.State)
}

// State returns the lifecycle state encoded in the name.
func (n Name) State() State {
	if n.Lock == nil {
		return StateUnlocked
	}
	return n.Lock.State
}

// IsLocked reports whether the name carries a lock suffix.
func (n Name) IsLocked() bool { return n.Lock != nil }

// LockedAt returns the lock timestamp, or the zero time for unlocked names.
func (n Name) LockedAt() time.Time {
	if n.Lock == nil {
		return time.Time{}
	}
	return n.Lock.Timestamp
}

// Locked returns the name stamped with ts and the locked token.
func (n Name) Locked(ts time.Time) Name {
	n.Lock = &Lock{Timestamp: Stamp(ts), State: StateLocked}
	return n
}

// WithState returns the name with its token replaced, keeping the lock
// timestamp. Passing StateUnlocked is equivalent to Unlocked. An unlocked
// name has no timestamp to keep and is returned unchanged; use Locked first.
func (n Name) WithState(s State) Name {
	if s == StateUnlocked || n.Lock == nil {
		return n.Unlocked()
	}
	n.Lock = &Lock{Timestamp: n.Lock.Timestamp, State: s}
	return n
}

// Unlocked returns the name without its suffix.
func (n Name) Unlocked() Name {
	n.Lock = nil
	return n
}

// Equal reports whether two names encode to the same string.
func (n Name) Equal(o Name) bool {
	if n.Identity != o.Identity || n.Kind != o.Kind {
		return false
	}
	if n.Lock == nil || o.Lock == nil {
		return n.Lock == nil && o.Lock == nil
	}
	return n.Lock.State == o.Lock.State && n.Lock.Timestamp.Equal(o.Lock.Timestamp)
}

func (n Name) validate() error {
	if !isIdentity(n.Identity) {
		return errors.NewFilenameError(n.Identity, "identity is not 40 hex characters")
	}
	if _, ok := ParseKind(string(n.Kind)); !ok {
		return errors.NewFilenameError(n.Identity, fmt.Sprintf("unknown kind %q", n.Kind))
	}
	return nil
}

func isIdentity(s string) bool {
	if len(s) != IdentityLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Timestamps
// -----------------------------------------------------------------------------

const secondsLayout = "20060102150405"

// Stamp converts t to UTC at millisecond precision, the precision a lock
// timestamp survives encoding with.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTimestamp renders t as yyyyMMddHHmmssfff in UTC.
func FormatTimestamp(t time.Time) string {
	t = Stamp(t)
	return t.Format(secondsLayout) + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// ParseTimestamp parses a yyyyMMddHHmmssfff string.
func ParseTimestamp(s string) (time.Time, error) {
	if len(s) != TimestampLength {
		return time.Time{}, fmt.Errorf("timestamp %q is not %d digits", s, TimestampLength)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, fmt.Errorf("timestamp %q is not numeric", s)
		}
	}
	t, err := time.ParseInLocation(secondsLayout, s[:14], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	ms, _ := strconv.Atoi(s[14:])
	return t.Add(time.Duration(ms) * time.Millisecond), nil
}
