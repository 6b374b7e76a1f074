// SPDX-License-Identifier: MPL-2.0

package cmddoc

import (
	"errors"
	"fmt"
	"math"
)

const (
	// LevelAll lets every source use the node.
	LevelAll Level = 0
	// LevelModerators restricts the node to moderators and above.
	LevelModerators Level = 1
	// LevelGamemasters restricts the node to gamemasters and above.
	LevelGamemasters Level = 2
	// LevelAdmins restricts the node to admins and above.
	LevelAdmins Level = 3
	// LevelOwners restricts the node to owners.
	LevelOwners Level = 4
)

// ErrInvalidLevel is the sentinel wrapped by InvalidLevelError.
var ErrInvalidLevel = errors.New("invalid permission level")

var levelNames = map[string]Level{
	"all":         LevelAll,
	"moderators":  LevelModerators,
	"gamemasters": LevelGamemasters,
	"admins":      LevelAdmins,
	"owners":      LevelOwners,
}

type (
	// Level is a permission tier. Documents may spell the five standard
	// tiers by name; any non-negative integer is accepted as well.
	Level int

	// InvalidLevelError is returned for unknown level names and negative or
	// non-integral numbers.
	InvalidLevelError struct {
		Value any
	}
)

// Error implements the error interface.
func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid permission level %v (valid names: all, moderators, gamemasters, admins, owners)", e.Value)
}

// Unwrap returns ErrInvalidLevel for errors.Is() compatibility.
func (e *InvalidLevelError) Unwrap() error { return ErrInvalidLevel }

// String returns the tier name for standard tiers and the number otherwise.
func (l Level) String() string {
	if name, ok := l.Name(); ok {
		return name
	}
	return fmt.Sprintf("%d", int(l))
}

// Name returns the tier name if l is one of the standard tiers.
func (l Level) Name() (string, bool) {
	for name, v := range levelNames {
		if v == l {
			return name, true
		}
	}
	return "", false
}

// ParseLevel converts a decoded level value (tier name or number) to a Level.
func ParseLevel(v any) (Level, error) {
	switch t := v.(type) {
	case string:
		if l, ok := levelNames[t]; ok {
			return l, nil
		}
	case int:
		if t >= 0 {
			return Level(t), nil
		}
	case int64:
		if t >= 0 && t <= math.MaxInt32 {
			return Level(t), nil
		}
	case float64:
		if t >= 0 && t == math.Trunc(t) && t <= math.MaxInt32 {
			return Level(t), nil
		}
	case Level:
		if t >= 0 {
			return t, nil
		}
	}
	return 0, &InvalidLevelError{Value: v}
}

// encode returns the most readable document form of l.
func (l Level) encode() any {
	if name, ok := l.Name(); ok {
		return name
	}
	return int(l)
}
