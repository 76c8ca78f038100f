package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseUnitID checks that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseUnitID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE blood_units;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseUnitID(input)
		if err == nil {
			roundTrip, err2 := ParseUnitID(id.String())
			if err2 != nil {
				t.Errorf("Valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("Round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("Non-UTF8 input was accepted")
		}
	})
}

// FuzzParseOrgID checks that accepted org identifiers are stable under re-parsing.
func FuzzParseOrgID(f *testing.F) {
	f.Add("org-1")
	f.Add("")
	f.Add(" padded ")
	f.Add("\xff\xfe")

	f.Fuzz(func(t *testing.T, input string) {
		org, err := ParseOrgID(input)
		if err != nil {
			return
		}
		again, err := ParseOrgID(org.String())
		if err != nil || again != org {
			t.Errorf("org id %q did not round-trip", org)
		}
		if !utf8.ValidString(org.String()) {
			t.Error("Non-UTF8 org id was accepted")
		}
	})
}
