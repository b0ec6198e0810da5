package chatsync

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one inbound room event.
type Event struct {
	Kind string
	Data json.RawMessage
}

// Transport is the realtime channel the session listens on. Implemented by
// WSTransport over WebSocket; tests substitute fakes.
type Transport interface {
	// Events delivers inbound events until the transport closes, then the
	// channel is closed.
	Events() <-chan Event
	// SendTyping emits one typing signal. Throttling is the caller's job.
	SendTyping() error
	Close() error
}

type wsEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WSTransport is the WebSocket implementation of Transport.
type WSTransport struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialRoom connects to the server's room channel. wsURL is the WebSocket
// endpoint, e.g. "ws://localhost:8080/ws". A join event is sent immediately
// so presence counts include this connection.
func DialRoom(wsURL string, roomID uuid.UUID, token string) (*WSTransport, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse ws url: %w", err)
	}
	q := u.Query()
	q.Set("room_id", roomID.String())
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	t := &WSTransport{
		conn:   conn,
		events: make(chan Event, 64),
	}
	if err := t.write(wsEnvelope{Event: "join"}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go t.readLoop()
	return t, nil
}

// Events implements Transport.
func (t *WSTransport) Events() <-chan Event { return t.events }

// SendTyping implements Transport.
func (t *WSTransport) SendTyping() error {
	return t.write(wsEnvelope{Event: "typing"})
}

// Close implements Transport.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *WSTransport) write(env wsEnvelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return t.conn.WriteJSON(env)
}

func (t *WSTransport) readLoop() {
	defer close(t.events)
	for {
		var env wsEnvelope
		if err := t.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case t.events <- Event{Kind: env.Event, Data: env.Data}:
		default:
			// slow consumer, drop rather than block the read loop
		}
	}
}
