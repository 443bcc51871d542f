// Package trust defines the ordered trust levels members hold within
// circles and the comparison used for every authorization decision.
package trust

import "fmt"

// Level is an ordered permission tier. Read < Write < Admin < Sysop.
//
// Sysop is held implicitly by the system administrator only; it is never
// stored in a trustee row.
type Level int

const (
	Read Level = iota + 1
	Write
	Admin
	Sysop
)

func (l Level) String() string {
	switch l {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Admin:
		return "ADMIN"
	case Sysop:
		return "SYSOP"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel converts the storage form back into a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "READ":
		return Read, nil
	case "WRITE":
		return Write, nil
	case "ADMIN":
		return Admin, nil
	case "SYSOP":
		return Sysop, nil
	default:
		return 0, fmt.Errorf("unknown trust level %q", s)
	}
}

// IsAllowed reports whether a held level satisfies a required one.
// Sysop satisfies every requirement.
func IsAllowed(held, required Level) bool {
	if held == Sysop {
		return true
	}
	return held >= required
}
