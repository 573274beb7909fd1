package router

import (
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniward/omniward/helper/hex"
	"github.com/omniward/omniward/types"
)

// startRouterService runs a scripted router service for one client. All
// writes happen on the read goroutine so the single writer rule holds.
func startRouterService(t *testing.T, script func(conn *websocket.Conn, frame *wsFrame)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		defer conn.Close()

		register := &wsFrame{}
		if err := conn.ReadJSON(register); err != nil {
			return
		}

		assert.Equal(t, wsFrameRegister, register.Type)
		assert.Equal(t, uint64(137), register.Chain)

		for {
			frame := &wsFrame{}
			if err := conn.ReadJSON(frame); err != nil {
				return
			}

			script(conn, frame)
		}
	}))

	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSRouter_QuoteAndRoute(t *testing.T) {
	t.Parallel()

	deliverData := hex.EncodeToHex([]byte("m1"))

	url := startRouterService(t, func(conn *websocket.Conn, frame *wsFrame) {
		switch frame.Type {
		case wsFrameQuote:
			assert.NoError(t, conn.WriteJSON(&wsFrame{
				ID: frame.ID, Type: wsFrameResult, Fee: "200000",
			}))
		case wsFrameSend:
			if frame.Chain == 404 {
				assert.NoError(t, conn.WriteJSON(&wsFrame{
					ID: frame.ID, Type: wsFrameResult, Error: "no route to chain",
				}))

				return
			}

			// a send to chain 7 triggers a delivery before the result,
			// exercising the inbound path on a live request cycle
			if frame.Chain == 7 {
				assert.NoError(t, conn.WriteJSON(&wsFrame{
					ID:        "push-1",
					Type:      wsFrameDeliver,
					FromChain: 5,
					Sender:    "0xfa",
					Data:      deliverData,
					MessageID: "0x01",
				}))
			}

			assert.NoError(t, conn.WriteJSON(&wsFrame{
				ID: frame.ID, Type: wsFrameResult, MessageID: "0xaa",
			}))
		case wsFrameAck:
			assert.Empty(t, frame.Error)
		}
	})

	handler := &recordingHandler{}

	client, err := NewWSRouter(hclog.NewNullLogger(), url, 137, handler)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	fee, err := client.GetFee(&Message{ToChain: 101, Data: []byte("m1")})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200000), fee)

	err = client.Route(&Message{ToChain: 404, Data: []byte("m1")}, fee)
	require.ErrorContains(t, err, "no route")

	require.NoError(t, client.Route(&Message{ToChain: 7, Data: []byte("m1")}, fee))

	require.Len(t, handler.deliveries, 1)
	delivery := handler.deliveries[0]
	assert.Equal(t, uint64(5), delivery.FromChain)
	assert.Equal(t, types.StringToAddress("0xfa"), delivery.Sender)
	assert.Equal(t, []byte("m1"), delivery.Data)
}

func TestWSRouter_RejectedDeliveryAck(t *testing.T) {
	t.Parallel()

	ackCh := make(chan *wsFrame, 1)

	url := startRouterService(t, func(conn *websocket.Conn, frame *wsFrame) {
		switch frame.Type {
		case wsFrameQuote:
			// the quote doubles as the trigger for the pushed delivery
			assert.NoError(t, conn.WriteJSON(&wsFrame{
				ID:        "push-1",
				Type:      wsFrameDeliver,
				FromChain: 5,
				Sender:    "0xfa",
				Data:      hex.EncodeToHex([]byte("m1")),
				MessageID: "0x01",
			}))
			assert.NoError(t, conn.WriteJSON(&wsFrame{
				ID: frame.ID, Type: wsFrameResult, Fee: "1",
			}))
		case wsFrameAck:
			ackCh <- frame
		}
	})

	client, err := NewWSRouter(hclog.NewNullLogger(), url, 137,
		&recordingHandler{err: assert.AnError})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, client.Close())
	})

	_, err = client.GetFee(&Message{ToChain: 101})
	require.NoError(t, err)

	select {
	case ack := <-ackCh:
		assert.Equal(t, "0x01", ack.MessageID)
		assert.Contains(t, ack.Error, assert.AnError.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("delivery was never acknowledged")
	}
}
