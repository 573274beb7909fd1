package types

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/omniward/omniward/helper/hex"
)

const (
	// HashLength is the byte size of a Hash
	HashLength = 32
	// AddressLength is the byte size of an Address
	AddressLength = 20
)

var (
	ZeroAddress = Address{}
	ZeroHash    = Hash{}
)

// Hash is a fixed size byte array representing a keccak-256 digest
type Hash [HashLength]byte

// Address is a fixed size byte array representing an account or component address
type Address [AddressLength]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

// BytesToHash converts a byte slice to a Hash, left padded
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	minSize := min(size, HashLength)

	copy(h[HashLength-minSize:], b[size-minSize:])

	return h
}

// StringToHash converts a hex string to a Hash
func StringToHash(str string) Hash {
	return BytesToHash(stringToBytes(str))
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	buf, err := hex.DecodeHex(string(input))
	if err != nil {
		return err
	}

	if len(buf) != HashLength {
		return fmt.Errorf("invalid hash length %d", len(buf))
	}

	copy(h[:], buf)

	return nil
}

// BytesToAddress converts a byte slice to an Address, left padded
func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	minSize := min(size, AddressLength)

	copy(a[AddressLength-minSize:], b[size-minSize:])

	return a
}

// StringToAddress converts a hex string to an Address
func StringToAddress(str string) Address {
	return BytesToAddress(stringToBytes(str))
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(input []byte) error {
	buf, err := hex.DecodeHex(string(input))
	if err != nil {
		return err
	}

	if len(buf) != AddressLength {
		return fmt.Errorf("invalid address length %d", len(buf))
	}

	copy(a[:], buf)

	return nil
}

func (a Address) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// UnmarshalYAML is needed because the yaml decoder does not fall back to
// encoding.TextUnmarshaler
func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	return a.UnmarshalText([]byte(raw))
}

func stringToBytes(str string) []byte {
	return hex.MustDecodeHex(str)
}
