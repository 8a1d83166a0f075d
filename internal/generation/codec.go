package generation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openmined/syftbackup/internal/utils"
)

const (
	DefaultTimeSeparator = ":"

	timeLayout = time.RFC3339
	// characters that appear in a rendered timestamp or in paths
	forbiddenSeparators = "0123456789-TZ+./\\"
)

var (
	ErrInvalidSeparator = errors.New("generation: invalid time separator")
	ErrTimeOutOfRange   = errors.New("generation: time out of range")
)

// names can only carry times in [MinTime, MaxTime]
var (
	MinTime = time.Unix(0, 0).UTC()
	MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// NamingConfig controls how generation names are rendered.
type NamingConfig struct {
	// TimeSeparator replaces every ':' in the timestamp.
	TimeSeparator string
	// ShortNames selects the compact `<prefix>-<R><K><base34 seconds>` form.
	ShortNames bool
}

func DefaultNamingConfig() NamingConfig {
	return NamingConfig{TimeSeparator: DefaultTimeSeparator}
}

func (c NamingConfig) Validate() error {
	sep := c.TimeSeparator
	if sep == "" {
		return nil
	}
	if utf8.RuneCountInString(sep) != 1 {
		return fmt.Errorf("%w: %q must be a single character", ErrInvalidSeparator, sep)
	}
	if strings.ContainsAny(sep, forbiddenSeparators) {
		return fmt.Errorf("%w: %q collides with timestamp characters", ErrInvalidSeparator, sep)
	}
	return nil
}

// Codec encodes and decodes generation names.
type Codec struct {
	separator string
	short     bool
}

func NewCodec(cfg NamingConfig) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sep := cfg.TimeSeparator
	if sep == "" {
		sep = DefaultTimeSeparator
	}
	return &Codec{separator: sep, short: cfg.ShortNames}, nil
}

// Encode renders a generation name. Long form: `<prefix>-<role>-<kind>.<timestamp>`.
// Times outside [MinTime, MaxTime] are rejected with ErrTimeOutOfRange.
func (c *Codec) Encode(prefix string, role Role, kind Kind, t time.Time) (string, error) {
	t = normalizeTime(t)
	if t.Before(MinTime) || t.After(MaxTime) {
		return "", fmt.Errorf("%w: %s", ErrTimeOutOfRange, t.Format(time.RFC3339))
	}
	if c.short {
		return prefix + "-" + shortRole(role) + shortKind(kind) + utils.EncodeBase34(uint64(t.Unix())), nil
	}

	ts := t.Format(timeLayout)
	if c.separator != ":" {
		ts = strings.ReplaceAll(ts, ":", c.separator)
	}
	return fmt.Sprintf("%s-%s-%s.%s", prefix, role, kind, ts), nil
}

func (c *Codec) EncodeIdentity(id Identity) (string, error) {
	return c.Encode(id.Prefix, id.Role, id.Kind, id.Time)
}

// Decode parses name. It reports false for anything that is not a generation
// of prefix, in either the long or the short form, so callers can skip
// unrelated entries of a listing.
func (c *Codec) Decode(prefix, name string) (Identity, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok || prefix == "" {
		return Identity{}, false
	}

	if id, ok := c.decodeLong(prefix, rest); ok {
		return id, true
	}
	return decodeShort(prefix, rest)
}

func (c *Codec) decodeLong(prefix, rest string) (Identity, bool) {
	roleToken, rest, ok := strings.Cut(rest, "-")
	if !ok || !Role(roleToken).valid() {
		return Identity{}, false
	}

	kindToken, rest, ok := strings.Cut(rest, ".")
	if !ok || !Kind(kindToken).valid() {
		return Identity{}, false
	}

	// anything after the next '.' is an extension
	ts, _, _ := strings.Cut(rest, ".")
	if c.separator != ":" {
		ts = strings.ReplaceAll(ts, c.separator, ":")
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return Identity{}, false
	}

	return NewIdentity(prefix, Role(roleToken), Kind(kindToken), t), true
}

func decodeShort(prefix, rest string) (Identity, bool) {
	token, _, _ := strings.Cut(rest, ".")
	if len(token) < 3 {
		return Identity{}, false
	}

	var role Role
	switch token[0] {
	case 'C':
		role = RoleContent
	case 'S':
		role = RoleSignatures
	default:
		return Identity{}, false
	}

	var kind Kind
	switch token[1] {
	case 'F':
		kind = KindFull
	case 'I':
		kind = KindIncremental
	default:
		return Identity{}, false
	}

	secs, err := utils.DecodeBase34(token[2:])
	if err != nil || secs > math.MaxInt64 {
		return Identity{}, false
	}

	return NewIdentity(prefix, role, kind, time.Unix(int64(secs), 0)), true
}

func shortRole(r Role) string {
	if r == RoleSignatures {
		return "S"
	}
	return "C"
}

func shortKind(k Kind) string {
	if k == KindFull {
		return "F"
	}
	return "I"
}
