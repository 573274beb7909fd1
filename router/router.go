package router

import (
	"errors"
	"math/big"

	"github.com/umbracle/fastrlp"

	"github.com/omniward/omniward/helper/keccak"
	"github.com/omniward/omniward/types"
)

// Message is an outbound cross-chain payload handed to the router transport
type Message struct {
	ToChain  uint64
	Receiver types.Address
	Data     []byte
	GasLimit uint64
}

// Delivery is an inbound cross-chain payload pushed by the router transport.
// Sender is transport-encoded and already resolved to a canonical address by
// the transport client before the adapter trusts it.
type Delivery struct {
	ID        types.Hash
	FromChain uint64
	Sender    types.Address
	Data      []byte
}

// Router is the fee quoting, message delivering capability consumed by the
// adapter. Implementations are clients of an external transport, the bridge
// core never implements one.
type Router interface {
	// GetFee quotes the delivery fee for the message. The quote is chain
	// condition dependent and can change between quote and use.
	GetFee(msg *Message) (*big.Int, error)

	// Route hands the message to the transport for delivery on the remote
	// chain. The fee was validated by the caller against a quote.
	Route(msg *Message, fee *big.Int) error

	// Close releases the transport connection
	Close() error
}

// Handler consumes inbound deliveries on the adapter side. A nil return
// acknowledges the delivery; the transport must not redeliver.
type Handler interface {
	DeliverMessage(delivery *Delivery) error
}

// ErrNoRoute is returned when the transport has no endpoint for the target chain
var ErrNoRoute = errors.New("no transport route to chain")

// MessageID derives the transport message id from the delivery content and a
// transport assigned nonce
func MessageID(fromChain uint64, sender types.Address, data []byte, nonce uint64) types.Hash {
	ar := &fastrlp.Arena{}

	v := ar.NewArray()
	v.Set(ar.NewUint(fromChain))
	v.Set(ar.NewBytes(sender.Bytes()))
	v.Set(ar.NewBytes(data))
	v.Set(ar.NewUint(nonce))

	return types.BytesToHash(keccak.Keccak256Rlp(nil, v))
}
