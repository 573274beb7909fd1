package router

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/types"
)

type recordingHandler struct {
	deliveries []*Delivery
	err        error
}

func (r *recordingHandler) DeliverMessage(delivery *Delivery) error {
	if r.err != nil {
		return r.err
	}

	r.deliveries = append(r.deliveries, delivery)

	return nil
}

func TestMessageID(t *testing.T) {
	t.Parallel()

	sender := types.StringToAddress("0xa1")

	first := MessageID(137, sender, []byte("payload"), 1)
	assert.Equal(t, first, MessageID(137, sender, []byte("payload"), 1))

	// every input contributes to the id
	assert.NotEqual(t, first, MessageID(101, sender, []byte("payload"), 1))
	assert.NotEqual(t, first, MessageID(137, types.StringToAddress("0xa2"), []byte("payload"), 1))
	assert.NotEqual(t, first, MessageID(137, sender, []byte("other"), 1))
	assert.NotEqual(t, first, MessageID(137, sender, []byte("payload"), 2))
}

func TestLoopback_GetFee(t *testing.T) {
	t.Parallel()

	lb := NewLoopbackRouter(hclog.NewNullLogger(), big.NewInt(200000))
	lb.Register(101, types.StringToAddress("0xa1"), &recordingHandler{})

	fee, err := lb.GetFee(&Message{ToChain: 101})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200000), fee)

	_, err = lb.GetFee(&Message{ToChain: 404})
	assert.ErrorIs(t, err, ErrNoRoute)

	lb.SetFee(big.NewInt(500))

	fee, err = lb.GetFee(&Message{ToChain: 101})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), fee)
}

func TestLoopback_Route(t *testing.T) {
	t.Parallel()

	lb := NewLoopbackRouter(hclog.NewNullLogger(), big.NewInt(1))

	origin := types.StringToAddress("0xa1")
	target := &recordingHandler{}

	lb.Register(137, origin, &recordingHandler{})
	lb.Register(101, types.StringToAddress("0xa2"), target)

	endpoint := lb.Endpoint(137)

	err := endpoint.Route(&Message{ToChain: 404, Data: []byte("m")}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoRoute)

	require.NoError(t, endpoint.Route(&Message{ToChain: 101, Data: []byte("m1")}, big.NewInt(1)))
	require.NoError(t, endpoint.Route(&Message{ToChain: 101, Data: []byte("m1")}, big.NewInt(1)))

	require.Len(t, target.deliveries, 2)

	first := target.deliveries[0]
	assert.Equal(t, uint64(137), first.FromChain)
	assert.Equal(t, origin, first.Sender, "sender is the origin endpoint's registered address")
	assert.Equal(t, []byte("m1"), first.Data)

	// identical messages still get distinct delivery ids
	assert.NotEqual(t, first.ID, target.deliveries[1].ID)
}

func TestLoopback_HandlerErrorPropagates(t *testing.T) {
	t.Parallel()

	lb := NewLoopbackRouter(hclog.NewNullLogger(), big.NewInt(1))
	lb.Register(101, types.StringToAddress("0xa2"), &recordingHandler{err: assert.AnError})

	err := lb.Endpoint(137).Route(&Message{ToChain: 101, Data: []byte("m1")}, big.NewInt(1))
	assert.ErrorIs(t, err, assert.AnError)
}
