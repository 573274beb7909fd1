package hex

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const hexPrefix = "0x"

// EncodeToHex generates a hex string based on the byte representation, with the '0x' prefix
func EncodeToHex(str []byte) string {
	return hexPrefix + hex.EncodeToString(str)
}

// EncodeToString is a wrapper method for hex.EncodeToString
func EncodeToString(str []byte) string {
	return hex.EncodeToString(str)
}

// DecodeString returns the byte representation of the hexadecimal string
func DecodeString(str string) ([]byte, error) {
	return hex.DecodeString(str)
}

// DecodeHex converts a hex string to a byte array, accepting the '0x' prefix
func DecodeHex(str string) ([]byte, error) {
	str = strings.TrimPrefix(str, hexPrefix)

	if len(str)%2 != 0 {
		str = "0" + str
	}

	return hex.DecodeString(str)
}

// MustDecodeHex type-checks and converts a hex string to a byte array
func MustDecodeHex(str string) []byte {
	buf, err := DecodeHex(str)
	if err != nil {
		panic(fmt.Errorf("could not decode hex: %w", err))
	}

	return buf
}

// EncodeUint64 encodes a number as a hex string with 0x prefix
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 10)
	copy(enc, hexPrefix)

	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeUint64 decodes a hex string with 0x prefix to uint64
func DecodeUint64(hexStr string) (uint64, error) {
	cleaned := strings.TrimPrefix(hexStr, hexPrefix)

	return strconv.ParseUint(cleaned, 16, 64)
}

// EncodeBig encodes a big.Int as a hex string with 0x prefix
func EncodeBig(b *big.Int) string {
	return hexPrefix + b.Text(16)
}

// DecodeHexToBig converts a hex number to a big.Int value
func DecodeHexToBig(hexNum string) (*big.Int, error) {
	cleaned := strings.TrimPrefix(hexNum, hexPrefix)

	createdNum, success := new(big.Int).SetString(cleaned, 16)
	if !success {
		return nil, fmt.Errorf("unable to parse hex number %s", hexNum)
	}

	return createdNum, nil
}
