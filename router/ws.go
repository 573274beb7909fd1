package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"

	"github.com/omniward/omniward/helper/hex"
	"github.com/omniward/omniward/types"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsRequestTimeout = 30 * time.Second
	wsDialTimeout    = 10 * time.Second
)

// wsFrame is the wire envelope exchanged with the router service. Request and
// response frames share the envelope, unused fields are omitted.
type wsFrame struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Chain     uint64 `json:"chain,omitempty"`
	FromChain uint64 `json:"fromChain,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Data      string `json:"data,omitempty"`
	GasLimit  uint64 `json:"gasLimit,omitempty"`
	Fee       string `json:"fee,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	wsFrameQuote    = "quote"
	wsFrameSend     = "send"
	wsFrameResult   = "result"
	wsFrameDeliver  = "deliver"
	wsFrameAck      = "ack"
	wsFrameRegister = "register"
)

// WSRouter is a client of an external router service speaking JSON frames over
// a websocket. Outbound requests are correlated by frame id, inbound
// deliveries are dispatched to the configured handler and acknowledged only
// when the handler accepts them.
type WSRouter struct {
	logger  hclog.Logger
	url     string
	chainID uint64
	handler Handler

	lock    sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan *wsFrame

	closeCh chan struct{}
	closed  bool
}

// NewWSRouter dials the router service and registers the local chain endpoint.
// The handler receives inbound deliveries, it may be nil for send-only clients.
func NewWSRouter(logger hclog.Logger, url string, chainID uint64, handler Handler) (*WSRouter, error) {
	w := &WSRouter{
		logger:  logger.Named("ws-router"),
		url:     url,
		chainID: chainID,
		handler: handler,
		pending: map[string]chan *wsFrame{},
		closeCh: make(chan struct{}),
	}

	if err := w.connect(); err != nil {
		return nil, err
	}

	go w.readLoop()

	return w, nil
}

func (w *WSRouter) connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial router service %s: %w", w.url, err)
	}

	register := &wsFrame{
		ID:    uuid.NewString(),
		Type:  wsFrameRegister,
		Chain: w.chainID,
	}
	if err := conn.WriteJSON(register); err != nil {
		conn.Close()

		return fmt.Errorf("failed to register with router service: %w", err)
	}

	w.lock.Lock()
	w.conn = conn
	w.lock.Unlock()

	w.logger.Info("connected to router service", "url", w.url, "chain", w.chainID)

	return nil
}

// readLoop reads frames until the connection drops, then reconnects with
// fibonacci backoff. Pending requests are failed on disconnect, the caller
// retries at its own level.
func (w *WSRouter) readLoop() {
	for {
		w.lock.Lock()
		conn := w.conn
		w.lock.Unlock()

		frame := &wsFrame{}
		if err := conn.ReadJSON(frame); err != nil {
			select {
			case <-w.closeCh:
				return
			default:
			}

			w.logger.Error("router connection lost", "err", err)
			w.failPending(err)

			if err := w.reconnect(); err != nil {
				return
			}

			continue
		}

		w.dispatch(frame)
	}
}

func (w *WSRouter) reconnect() error {
	backoff := retry.WithCappedDuration(time.Minute, retry.NewFibonacci(time.Second))

	return retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		select {
		case <-w.closeCh:
			return errors.New("router client closed")
		default:
		}

		if err := w.connect(); err != nil {
			w.logger.Warn("router reconnect failed", "err", err)

			return retry.RetryableError(err)
		}

		return nil
	})
}

func (w *WSRouter) dispatch(frame *wsFrame) {
	switch frame.Type {
	case wsFrameResult:
		w.lock.Lock()
		ch, ok := w.pending[frame.ID]
		if ok {
			delete(w.pending, frame.ID)
		}
		w.lock.Unlock()

		if ok {
			ch <- frame
		}
	case wsFrameDeliver:
		w.handleDelivery(frame)
	default:
		w.logger.Warn("unexpected frame from router service", "type", frame.Type)
	}
}

func (w *WSRouter) handleDelivery(frame *wsFrame) {
	if w.handler == nil {
		w.logger.Warn("dropping delivery, no handler configured", "id", frame.MessageID)

		return
	}

	data, err := hex.DecodeHex(frame.Data)
	if err != nil {
		w.logger.Error("malformed delivery data", "id", frame.MessageID, "err", err)

		return
	}

	sender, err := parseAddress(frame.Sender)
	if err != nil {
		w.logger.Error("malformed delivery sender", "id", frame.MessageID, "err", err)

		return
	}

	delivery := &Delivery{
		ID:        types.StringToHash(frame.MessageID),
		FromChain: frame.FromChain,
		Sender:    sender,
		Data:      data,
	}

	ack := &wsFrame{ID: frame.ID, Type: wsFrameAck, MessageID: frame.MessageID}
	if err := w.handler.DeliverMessage(delivery); err != nil {
		w.logger.Error("delivery rejected", "id", frame.MessageID, "err", err)
		ack.Error = err.Error()
	}

	if err := w.writeFrame(ack); err != nil {
		w.logger.Error("failed to ack delivery", "id", frame.MessageID, "err", err)
	}
}

func (w *WSRouter) failPending(err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	for id, ch := range w.pending {
		delete(w.pending, id)
		ch <- &wsFrame{ID: id, Type: wsFrameResult, Error: err.Error()}
	}
}

func (w *WSRouter) writeFrame(frame *wsFrame) error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.conn == nil {
		return errors.New("router connection not established")
	}

	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}

	return w.conn.WriteJSON(frame)
}

// request sends the frame and blocks for the correlated result
func (w *WSRouter) request(frame *wsFrame) (*wsFrame, error) {
	frame.ID = uuid.NewString()
	ch := make(chan *wsFrame, 1)

	w.lock.Lock()
	w.pending[frame.ID] = ch
	w.lock.Unlock()

	if err := w.writeFrame(frame); err != nil {
		w.lock.Lock()
		delete(w.pending, frame.ID)
		w.lock.Unlock()

		return nil, err
	}

	select {
	case res := <-ch:
		if res.Error != "" {
			return nil, errors.New(res.Error)
		}

		return res, nil
	case <-time.After(wsRequestTimeout):
		w.lock.Lock()
		delete(w.pending, frame.ID)
		w.lock.Unlock()

		return nil, fmt.Errorf("router request %s timed out", frame.Type)
	case <-w.closeCh:
		return nil, errors.New("router client closed")
	}
}

func (w *WSRouter) GetFee(msg *Message) (*big.Int, error) {
	res, err := w.request(&wsFrame{
		Type:     wsFrameQuote,
		Chain:    msg.ToChain,
		Receiver: msg.Receiver.String(),
		Data:     hex.EncodeToHex(msg.Data),
		GasLimit: msg.GasLimit,
	})
	if err != nil {
		return nil, err
	}

	fee, ok := new(big.Int).SetString(res.Fee, 10)
	if !ok {
		return nil, fmt.Errorf("malformed fee quote from router service: %q", res.Fee)
	}

	return fee, nil
}

func (w *WSRouter) Route(msg *Message, fee *big.Int) error {
	_, err := w.request(&wsFrame{
		Type:     wsFrameSend,
		Chain:    msg.ToChain,
		Receiver: msg.Receiver.String(),
		Data:     hex.EncodeToHex(msg.Data),
		GasLimit: msg.GasLimit,
		Fee:      fee.String(),
	})

	return err
}

func (w *WSRouter) Close() error {
	w.lock.Lock()
	if w.closed {
		w.lock.Unlock()

		return nil
	}

	w.closed = true
	close(w.closeCh)
	conn := w.conn
	w.lock.Unlock()

	if conn != nil {
		return conn.Close()
	}

	return nil
}

func parseAddress(raw string) (types.Address, error) {
	buf, err := hex.DecodeHex(raw)
	if err != nil {
		return types.ZeroAddress, err
	}

	return types.BytesToAddress(buf), nil
}
