package bridge

import (
	"github.com/omniward/omniward/helper/common"
	"github.com/omniward/omniward/helper/keccak"
	"github.com/omniward/omniward/types"
)

// wrappedAddressSalt namespaces wrapped collection addresses so they cannot
// collide with externally created collections
var wrappedAddressSalt = []byte("omniward.wrapped.v1")

// WrappedAddress derives the deterministic local address for the wrapped
// counterpart of the given origin collection. Every node derives the same
// address for the same origin, the wrapped registry only records first use.
func WrappedAddress(originChainID uint64, origin types.Address) types.Address {
	buf := make([]byte, 0, len(wrappedAddressSalt)+8+types.AddressLength)
	buf = append(buf, wrappedAddressSalt...)
	buf = append(buf, common.EncodeUint64ToBytes(originChainID)...)
	buf = append(buf, origin.Bytes()...)

	hash := keccak.Keccak256(nil, buf)

	return types.BytesToAddress(hash[types.HashLength-types.AddressLength:])
}

// wrappedName prefixes the origin collection name for the wrapped deployment
func wrappedName(name string) string {
	return "Wrapped " + name
}

func wrappedSymbol(symbol string) string {
	return "w" + symbol
}
