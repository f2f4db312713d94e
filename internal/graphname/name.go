// Package graphname builds and parses timestamp-qualified graph identifiers
// of the form <prefix?>timestamp:<epoch-millis>[/<role>].
package graphname

import (
	"fmt"
	"strconv"
	"strings"
)

// Marker introduces the timestamp segment of every versioned graph name.
const Marker = "timestamp:"

// Role is the suffix describing what a timestamped graph holds.
type Role string

const (
	RoleNone    Role = ""
	RoleBase    Role = "base"
	RoleTemp    Role = "temp"
	RoleAdded   Role = "added"
	RoleRemoved Role = "removed"
)

// Valid reports whether r is a known role. RoleNone is the legacy flat snapshot.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleBase, RoleTemp, RoleAdded, RoleRemoved:
		return true
	}
	return false
}

func (r Role) rank() int {
	switch r {
	case RoleBase:
		return 0
	case RoleAdded:
		return 1
	case RoleRemoved:
		return 2
	case RoleTemp:
		return 3
	default:
		return 4
	}
}

// Name is a graph identifier as stored, without angle brackets.
type Name string

func (n Name) String() string { return string(n) }

// IRI returns the name enclosed in angle brackets for embedding in SPARQL.
func (n Name) IRI() string { return "<" + string(n) + ">" }

// Parsed is the structured form of a Name.
type Parsed struct {
	Name      Name
	Prefix    string
	Timestamp int64
	Role      Role
}

// NormalizePrefix returns prefix with exactly one trailing '/', or "" when
// the prefix is blank.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Make builds the graph name for prefix at ts with the given role.
func Make(prefix string, ts int64, role Role) Name {
	var b strings.Builder
	b.WriteString(NormalizePrefix(prefix))
	b.WriteString(Marker)
	b.WriteString(strconv.FormatInt(ts, 10))
	if role != RoleNone {
		b.WriteByte('/')
		b.WriteString(string(role))
	}
	return Name(b.String())
}

// Parse splits a name into prefix, timestamp and role.
func Parse(name string) (Parsed, error) {
	idx := strings.LastIndex(name, Marker)
	if idx < 0 {
		return Parsed{}, &MalformedNameError{Name: name, Reason: "missing " + Marker + " segment"}
	}

	prefix := name[:idx]
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		return Parsed{}, &MalformedNameError{Name: name, Reason: "prefix must end with '/'"}
	}

	rest := name[idx+len(Marker):]
	digits, suffix, hasRole := strings.Cut(rest, "/")
	if digits == "" {
		return Parsed{}, &MalformedNameError{Name: name, Reason: "empty timestamp"}
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Parsed{}, &MalformedNameError{Name: name, Reason: fmt.Sprintf("timestamp %q is not an integer", digits)}
		}
	}
	ts, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Parsed{}, &MalformedNameError{Name: name, Reason: err.Error()}
	}

	role := RoleNone
	if hasRole {
		role = Role(suffix)
		if role == RoleNone || !role.Valid() {
			return Parsed{}, &MalformedNameError{Name: name, Reason: fmt.Sprintf("unknown role %q", suffix)}
		}
	}

	return Parsed{Name: Name(name), Prefix: prefix, Timestamp: ts, Role: role}, nil
}

// ParseRole returns the role of name, or false if the name is malformed.
func ParseRole(name Name) (Role, bool) {
	p, err := Parse(string(name))
	if err != nil {
		return RoleNone, false
	}
	return p.Role, true
}

// ExtractTimestamp returns the epoch milliseconds embedded in name.
func ExtractTimestamp(name Name) (int64, error) {
	p, err := Parse(string(name))
	if err != nil {
		return 0, err
	}
	return p.Timestamp, nil
}

// MalformedNameError reports a graph name that does not follow the grammar.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed graph name %q: %s", e.Name, e.Reason)
}

// InvalidPrefixError reports a prefix that cannot be embedded in a graph IRI.
type InvalidPrefixError struct {
	Prefix string
}

func (e *InvalidPrefixError) Error() string {
	return fmt.Sprintf("invalid graph prefix %q: contains characters not allowed in an IRI", e.Prefix)
}

// ValidatePrefix rejects a prefix containing characters that would end the
// IRI it is embedded in or break out of the surrounding statement.
func ValidatePrefix(prefix string) error {
	for _, r := range prefix {
		if r <= 0x20 || strings.ContainsRune("<>\"{}|^`\\", r) {
			return &InvalidPrefixError{Prefix: prefix}
		}
	}
	return nil
}

// GenIDBase returns the IRI namespace blank nodes of prefix are skolemized
// into.
func GenIDBase(prefix string) string {
	if p := NormalizePrefix(prefix); p != "" {
		return p + ".well-known/genid/"
	}
	return "urn:timegraph:genid:"
}
