package domain

import (
	"errors"
	"testing"
)

func TestNewVictimKeyString(t *testing.T) {
	key, err := NewVictimKey(" B ", "Rex")
	if err != nil {
		t.Fatalf("new victim key: %v", err)
	}
	if key.String() != "B:Rex" {
		t.Fatalf("key = %q, want %q", key.String(), "B:Rex")
	}
}

func TestNewVictimKeyValidation(t *testing.T) {
	cases := []struct {
		name  string
		owner string
		pet   string
	}{
		{name: "blank owner", owner: " ", pet: "Rex"},
		{name: "blank name", owner: "B", pet: ""},
		{name: "separator in owner", owner: "B:C", pet: "Rex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewVictimKey(tc.owner, tc.pet)
			if !errors.Is(err, ErrInvalidVictimKey) {
				t.Fatalf("err = %v, want ErrInvalidVictimKey", err)
			}
		})
	}
}

func TestParseVictimKeySplitsOnFirstSeparator(t *testing.T) {
	key, err := ParseVictimKey("B:Rex: the Second")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key.Owner != "B" || key.Name != "Rex: the Second" {
		t.Fatalf("key = %+v, want owner B and name with separator", key)
	}
	if key.String() != "B:Rex: the Second" {
		t.Fatalf("round trip = %q", key.String())
	}
}

func TestParseVictimKeyRejectsMissingSeparator(t *testing.T) {
	if _, err := ParseVictimKey("Rex"); !errors.Is(err, ErrInvalidVictimKey) {
		t.Fatalf("err = %v, want ErrInvalidVictimKey", err)
	}
}
