package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // v7
		"123e4567-e89b-42d3-a456-426614174000", // v4
		"123E4567-E89B-42D3-A456-426614174000", // uppercase
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",       // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",   // invalid hex
		"{123e4567-e89b-42d3-a456-426614174000}", // braces
		"urn:uuid:123e4567-e89b-42d3-a456-426614174000",
		"",
	}
	for _, id := range valid {
		if !IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if IsValidUUID(id) {
			t.Errorf("IsValidUUID(%q) = true, want false", id)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"2025-01-31", true},
		{"2024-02-29", true},
		{"2025-02-29", false},
		{"31-01-2025", false},
		{"2025-1-1", false},
		{"", false},
	}
	for _, c := range cases {
		_, got := IsValidDate(c.input)
		if got != c.want {
			t.Errorf("IsValidDate(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsInSlice(t *testing.T) {
	slice := []string{"monthly", "fortnightly"}
	if !IsInSlice("monthly", slice) {
		t.Errorf("IsInSlice(monthly) = false, want true")
	}
	if IsInSlice("weekly", slice) {
		t.Errorf("IsInSlice(weekly) = true, want false")
	}
	if IsInSlice("monthly", nil) {
		t.Errorf("IsInSlice on nil slice = true, want false")
	}
}

func TestIsInRange(t *testing.T) {
	cases := []struct {
		n, min, max int
		want        bool
	}{
		{1, 1, 12, true},
		{12, 1, 12, true},
		{0, 1, 12, false},
		{13, 1, 12, false},
	}
	for _, c := range cases {
		if got := IsInRange(c.n, c.min, c.max); got != c.want {
			t.Errorf("IsInRange(%d, %d, %d) = %v, want %v", c.n, c.min, c.max, got, c.want)
		}
	}
}

func TestIsNonNegative(t *testing.T) {
	if !IsNonNegative(decimal.Zero) {
		t.Errorf("IsNonNegative(0) = false, want true")
	}
	if !IsNonNegative(decimal.RequireFromString("0.01")) {
		t.Errorf("IsNonNegative(0.01) = false, want true")
	}
	if IsNonNegative(decimal.RequireFromString("-0.01")) {
		t.Errorf("IsNonNegative(-0.01) = true, want false")
	}
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "year", Message: "is required"},
		{Field: "action", Message: "is invalid"},
	}

	if got, want := errs.Error(), "year: is required; action: is invalid"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	m := errs.ToMap()
	if len(m) != 2 || m["year"] != "is required" || m["action"] != "is invalid" {
		t.Errorf("ToMap() = %v", m)
	}
}
