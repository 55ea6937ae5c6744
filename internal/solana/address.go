package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Encoded sizes of Solana identifiers.
const (
	AddressLength   = 32
	SignatureLength = 64
)

// Validation errors.
var (
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ValidateAddress checks that s is base58 and decodes to a 32-byte public key.
func ValidateAddress(s string) error {
	return validateBase58(s, AddressLength, ErrInvalidAddress)
}

// ValidateSignature checks that s is base58 and decodes to a 64-byte signature.
func ValidateSignature(s string) error {
	return validateBase58(s, SignatureLength, ErrInvalidSignature)
}

func validateBase58(s string, size int, sentinel error) error {
	if s == "" {
		return fmt.Errorf("%w: empty", sentinel)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	if len(decoded) != size {
		return fmt.Errorf("%w: decoded length %d, want %d", sentinel, len(decoded), size)
	}
	return nil
}

// IsOnCurve reports whether the address is a point on the ed25519 curve.
// Wallet keys are on-curve; program derived addresses are not.
func IsOnCurve(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != AddressLength {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
