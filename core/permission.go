package core

import (
	"fmt"
	"strings"
)

// PermissionLevel is one of four ordered access tiers gating which
// capabilities a caller may invoke. The ordering is total:
//
//	ReadOnly < ReadExecute < ReadExecuteWrite < Admin
//
// An operation may execute only if the caller's held level is >= the
// capability's required level.
type PermissionLevel int

const (
	// PermissionReadOnly allows inspection of data and descriptors only.
	PermissionReadOnly PermissionLevel = iota
	// PermissionReadExecute additionally allows invoking read/compute capabilities.
	PermissionReadExecute
	// PermissionReadExecuteWrite additionally allows capabilities with side effects.
	PermissionReadExecuteWrite
	// PermissionAdmin allows everything, including administrative operations.
	PermissionAdmin
)

// String returns the canonical string form of the level.
func (l PermissionLevel) String() string {
	switch l {
	case PermissionReadOnly:
		return "read_only"
	case PermissionReadExecute:
		return "read_execute"
	case PermissionReadExecuteWrite:
		return "read_execute_write"
	case PermissionAdmin:
		return "admin"
	default:
		return fmt.Sprintf("invalid(%d)", int(l))
	}
}

// Valid reports whether the level is one of the four defined tiers.
func (l PermissionLevel) Valid() bool {
	return l >= PermissionReadOnly && l <= PermissionAdmin
}

// ParsePermissionLevel converts a string into a PermissionLevel. Matching is
// case-insensitive. Unknown strings yield an error; callers gating access on
// a parse failure must treat it as a denial.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read_only", "readonly":
		return PermissionReadOnly, nil
	case "read_execute":
		return PermissionReadExecute, nil
	case "read_execute_write":
		return PermissionReadExecuteWrite, nil
	case "admin":
		return PermissionAdmin, nil
	default:
		return PermissionLevel(-1), fmt.Errorf("unknown permission level %q", s)
	}
}

// Permits reports whether a caller holding 'held' may invoke a capability
// requiring 'required'. It is a pure function of its arguments; malformed
// input on either side denies.
func Permits(held, required PermissionLevel) bool {
	if !held.Valid() || !required.Valid() {
		return false
	}
	return held >= required
}

// CheckPermission is the hard gate applied before any capability executes.
// It returns nil when access is allowed and a PermissionDenied error
// otherwise; a denial is never silently downgraded.
func CheckPermission(held, required PermissionLevel, action string) error {
	if Permits(held, required) {
		return nil
	}
	return NewError(KindPermissionDenied, "action %q requires %s, caller holds %s", action, required, held)
}
