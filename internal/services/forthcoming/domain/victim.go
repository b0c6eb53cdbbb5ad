package domain

import (
	"errors"
	"fmt"
	"strings"
)

// VictimKeySeparator joins owner and companion name in the persisted key.
const VictimKeySeparator = ":"

// ErrInvalidVictimKey reports a key that cannot be built or parsed.
var ErrInvalidVictimKey = errors.New("invalid victim key")

// VictimKey identifies a companion by its owner's name and its display name.
// Same-named companions of one owner share a key.
type VictimKey struct {
	Owner string
	Name  string
}

// NewVictimKey validates and builds a key. Owner names may not contain the
// separator; companion names may, since parsing splits on the first one.
func NewVictimKey(owner, name string) (VictimKey, error) {
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" {
		return VictimKey{}, fmt.Errorf("%w: owner is required", ErrInvalidVictimKey)
	}
	if name == "" {
		return VictimKey{}, fmt.Errorf("%w: companion name is required", ErrInvalidVictimKey)
	}
	if strings.Contains(owner, VictimKeySeparator) {
		return VictimKey{}, fmt.Errorf("%w: owner %q contains %q", ErrInvalidVictimKey, owner, VictimKeySeparator)
	}
	return VictimKey{Owner: owner, Name: name}, nil
}

// ParseVictimKey splits a persisted "<owner>:<name>" key.
func ParseVictimKey(raw string) (VictimKey, error) {
	owner, name, ok := strings.Cut(raw, VictimKeySeparator)
	if !ok {
		return VictimKey{}, fmt.Errorf("%w: %q has no separator", ErrInvalidVictimKey, raw)
	}
	return NewVictimKey(owner, name)
}

// String renders the persisted form.
func (k VictimKey) String() string {
	return k.Owner + VictimKeySeparator + k.Name
}
