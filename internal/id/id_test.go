package id

import (
	"testing"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

func TestParseAddressVariants(t *testing.T) {
	cases := []string{
		"0x4200000000000000000000000000000000000006",
		"vitalik.eth",
		"someone.base.eth",
	}
	for _, in := range cases {
		if _, err := ParseAddress(in); err != nil {
			t.Fatalf("ParseAddress(%s) failed: %v", in, err)
		}
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"0x1234",
		"not an address",
		"name.sol",
		"0xZZ00000000000000000000000000000000000006",
	}
	for _, in := range cases {
		_, err := ParseAddress(in)
		if !boterr.Is(err, boterr.CodeInvalidInput) {
			t.Fatalf("ParseAddress(%q): expected invalid input, got %v", in, err)
		}
	}
}
