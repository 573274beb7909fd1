package router

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/omniward/omniward/types"
)

// LoopbackRouter is an in-process transport connecting locally registered
// chain endpoints. It is used by single-process deployments and by tests,
// delivery is synchronous and happens on the caller's goroutine.
type LoopbackRouter struct {
	logger hclog.Logger

	lock     sync.Mutex
	handlers map[uint64]loopbackEndpoint
	fee      *big.Int
	nonce    uint64
}

type loopbackEndpoint struct {
	address types.Address
	handler Handler
}

// NewLoopbackRouter creates a loopback transport quoting a flat fee per message
func NewLoopbackRouter(logger hclog.Logger, fee *big.Int) *LoopbackRouter {
	return &LoopbackRouter{
		logger:   logger.Named("loopback-router"),
		handlers: map[uint64]loopbackEndpoint{},
		fee:      new(big.Int).Set(fee),
	}
}

// Register attaches the handler as the endpoint for the given transport chain id.
// The address is reported as the delivery sender on the receiving side.
func (l *LoopbackRouter) Register(chainID uint64, address types.Address, handler Handler) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.handlers[chainID] = loopbackEndpoint{address: address, handler: handler}
}

// SetFee changes the flat fee quote
func (l *LoopbackRouter) SetFee(fee *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.fee = new(big.Int).Set(fee)
}

func (l *LoopbackRouter) GetFee(msg *Message) (*big.Int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.handlers[msg.ToChain]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoRoute, msg.ToChain)
	}

	return new(big.Int).Set(l.fee), nil
}

// RouteFrom delivers the message to the endpoint registered for msg.ToChain,
// reporting fromChain as the origin. The registered sender address of the
// origin endpoint is used when one exists, otherwise the zero address.
func (l *LoopbackRouter) RouteFrom(fromChain uint64, msg *Message, fee *big.Int) error {
	l.lock.Lock()

	target, ok := l.handlers[msg.ToChain]
	if !ok {
		l.lock.Unlock()

		return fmt.Errorf("%w: %d", ErrNoRoute, msg.ToChain)
	}

	sender := types.ZeroAddress
	if origin, ok := l.handlers[fromChain]; ok {
		sender = origin.address
	}

	l.nonce++
	delivery := &Delivery{
		ID:        MessageID(fromChain, sender, msg.Data, l.nonce),
		FromChain: fromChain,
		Sender:    sender,
		Data:      msg.Data,
	}

	l.lock.Unlock()

	l.logger.Debug("routing message",
		"from", fromChain, "to", msg.ToChain, "id", delivery.ID, "fee", fee)

	return target.handler.DeliverMessage(delivery)
}

// Endpoint binds the loopback transport to a single local chain id so it
// satisfies the Router interface for one adapter.
func (l *LoopbackRouter) Endpoint(localChainID uint64) Router {
	return &loopbackClient{parent: l, localChainID: localChainID}
}

type loopbackClient struct {
	parent       *LoopbackRouter
	localChainID uint64
}

func (c *loopbackClient) GetFee(msg *Message) (*big.Int, error) {
	return c.parent.GetFee(msg)
}

func (c *loopbackClient) Route(msg *Message, fee *big.Int) error {
	return c.parent.RouteFrom(c.localChainID, msg, fee)
}

func (c *loopbackClient) Close() error {
	return nil
}
