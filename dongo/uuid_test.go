package dongo

import (
	"testing"

	"github.com/google/uuid"
)

func TestToUUID(t *testing.T) {
	canonical := "00000000-0000-0000-0000-000000000007"

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"int", 7, canonical},
		{"int64", int64(7), canonical},
		{"uint64", uint64(7), canonical},
		{"digit string", "7", canonical},
		{"canonical string", canonical, canonical},
		{"hex string", "00000000000000000000000000000007", canonical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToUUID(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestToUUIDRejects(t *testing.T) {
	for _, bad := range []interface{}{
		-1,
		int64(-42),
		"not-a-uuid",
		"",
		3.14,
		nil,
	} {
		if _, err := ToUUID(bad); err == nil {
			t.Errorf("ToUUID(%v) accepted", bad)
		}
	}
}

func TestUUIDFromIDDeterministic(t *testing.T) {
	a := uuidFromID("5f1d7a0b9c2e4d3f8a6b1c0d")
	b := uuidFromID("5f1d7a0b9c2e4d3f8a6b1c0d")
	if a != b {
		t.Error("derivation must be deterministic")
	}
	if a == uuid.Nil {
		t.Error("derivation produced the nil uuid")
	}
	if a == uuidFromID("another-id") {
		t.Error("distinct ids collided")
	}
}
