package id

import (
	"regexp"
	"strings"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

var (
	evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	ensNamePattern    = regexp.MustCompile(`^[a-zA-Z0-9-]+(\.base)?\.eth$`)
)

// ParseAddress validates a destination a user typed in chat. Hex addresses
// and ENS style names (name.eth, name.base.eth) are accepted.
func ParseAddress(input string) (string, error) {
	v := strings.TrimSpace(input)
	if evmAddressPattern.MatchString(v) {
		return v, nil
	}
	if ensNamePattern.MatchString(v) {
		return v, nil
	}
	return "", boterr.New(boterr.CodeInvalidInput, "invalid address or name")
}

// IsHexAddress reports whether input is a plain 20-byte hex address.
func IsHexAddress(input string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(input))
}
