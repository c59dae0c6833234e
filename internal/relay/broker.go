// Package relay routes messages between the desktop and mobile halves of a
// pairing session. The broker is an in-memory publish/subscribe router keyed
// by session token; it never touches the pairing store, so both observe the
// same logical completion independently.
package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"scanbridge/internal/token"
)

// DefaultFrameLimit caps camera_frame payloads (bytes of frameData).
const DefaultFrameLimit = 512 * 1024

// Writer sends one text frame to the connection's transport. Writes may be
// called only from the broker loop, so implementations need no internal
// ordering beyond their own transport rules.
type Writer interface {
	Write(message []byte) error
	Close() error
}

// Conn is one open relay connection. The token field is owned by the broker
// loop and must not be touched from outside it.
type Conn struct {
	ID     string
	writer Writer
	token  string
}

func NewConn(w Writer) *Conn {
	return &Conn{ID: uuid.NewString(), writer: w}
}

type eventKind int

const (
	evAttach eventKind = iota
	evInbound
	evDetach
)

type event struct {
	kind    eventKind
	conn    *Conn
	data    []byte
	initial string
}

// Broker owns the connection table and the token→subscriber index. All
// mutation happens on the single Run loop; connection read loops only post
// events, which is what gives same-token broadcasts their in-order
// guarantee: one inbound message is handled fully, fan-out included,
// before the next one starts.
type Broker struct {
	frameLimit int

	events chan event
	done   chan struct{}

	conns map[*Conn]struct{}
	subs  map[string]map[*Conn]struct{}
}

func NewBroker(frameLimit int) *Broker {
	if frameLimit <= 0 {
		frameLimit = DefaultFrameLimit
	}
	return &Broker{
		frameLimit: frameLimit,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		conns:      make(map[*Conn]struct{}),
		subs:       make(map[string]map[*Conn]struct{}),
	}
}

// Run is the dispatch loop. It blocks until ctx is cancelled, then closes
// every remaining connection.
func (b *Broker) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			for c := range b.conns {
				_ = c.writer.Close()
			}
			return
		case ev := <-b.events:
			b.handle(ev)
		}
	}
}

// Attach registers a freshly upgraded connection. If initialToken is
// non-empty the connection is subscribed to it before the connected
// greeting goes out.
func (b *Broker) Attach(c *Conn, initialToken string) {
	b.post(event{kind: evAttach, conn: c, initial: initialToken})
}

// Inbound hands one raw inbound frame to the broker loop.
func (b *Broker) Inbound(c *Conn, data []byte) {
	b.post(event{kind: evInbound, conn: c, data: data})
}

// Detach removes a connection after its transport closed or errored.
func (b *Broker) Detach(c *Conn) {
	b.post(event{kind: evDetach, conn: c})
}

func (b *Broker) post(ev event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

func (b *Broker) handle(ev event) {
	switch ev.kind {
	case evAttach:
		b.handleAttach(ev.conn, ev.initial)
	case evInbound:
		b.handleInbound(ev.conn, ev.data)
	case evDetach:
		b.handleDetach(ev.conn)
	}
}

func (b *Broker) handleAttach(c *Conn, initialToken string) {
	b.conns[c] = struct{}{}

	greeting := serverMessage{Type: TypeConnected}
	if initialToken != "" {
		clean, err := token.Sanitize(initialToken)
		if err == nil {
			b.subscribe(c, clean)
			greeting.Token = clean
		}
	}
	b.writeTo(c, marshalMessage(greeting))
}

func (b *Broker) handleDetach(c *Conn) {
	if _, ok := b.conns[c]; !ok {
		return
	}
	delete(b.conns, c)
	b.unsubscribe(c)
	_ = c.writer.Close()
}

func (b *Broker) handleInbound(c *Conn, data []byte) {
	if _, ok := b.conns[c]; !ok {
		return
	}

	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Forward compatibility over strictness.
		return
	}

	switch msg.Type {
	case TypePing:
		b.writeTo(c, marshalMessage(serverMessage{Type: TypePong}))

	case TypeSubscribe:
		clean, err := token.Sanitize(msg.Token)
		if err != nil {
			b.writeError(c, "invalid token")
			return
		}
		b.unsubscribe(c)
		b.subscribe(c, clean)
		b.writeTo(c, marshalMessage(serverMessage{Type: TypeSubscribed, Token: clean}))

	case TypeUploadComplete:
		clean, err := token.Sanitize(msg.Token)
		if err != nil {
			b.writeError(c, "invalid token")
			return
		}
		out := marshalMessage(serverMessage{
			Type:              TypeUploadComplete,
			Token:             clean,
			DocType:           msg.DocType,
			Title:             msg.Title,
			UploadedBy:        msg.UploadedBy,
			ResultID:          msg.ResultID,
			ObjectKeys:        msg.ObjectKeys,
			ImageURLs:         msg.ImageURLs,
			DeferredToDesktop: msg.DeferredToDesktop,
		})
		delivered := b.broadcast(clean, out)
		b.writeTo(c, marshalMessage(serverMessage{Type: TypeAck, Token: clean, Delivered: &delivered}))

	case TypeCameraFrame:
		clean, err := token.Sanitize(msg.Token)
		if err != nil {
			b.writeError(c, "invalid token")
			return
		}
		if len(msg.FrameData) > b.frameLimit {
			// A single oversized sender must not monopolize the
			// broker; the frame is ephemeral, so drop it quietly.
			return
		}
		b.broadcast(clean, marshalMessage(serverMessage{
			Type:      TypeCameraFrame,
			Token:     clean,
			FrameData: msg.FrameData,
			Width:     msg.Width,
			Height:    msg.Height,
			TS:        msg.TS,
		}))

	case TypeCameraStatus:
		clean, err := token.Sanitize(msg.Token)
		if err != nil {
			b.writeError(c, "invalid token")
			return
		}
		b.broadcast(clean, marshalMessage(serverMessage{
			Type:   TypeCameraStatus,
			Token:  clean,
			Status: msg.Status,
		}))

	default:
		// Unknown message shapes are ignored.
	}
}

func (b *Broker) subscribe(c *Conn, tok string) {
	set, ok := b.subs[tok]
	if !ok {
		set = make(map[*Conn]struct{})
		b.subs[tok] = set
	}
	set[c] = struct{}{}
	c.token = tok
}

func (b *Broker) unsubscribe(c *Conn) {
	if c.token == "" {
		return
	}
	set, ok := b.subs[c.token]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(b.subs, c.token)
		}
	}
	c.token = ""
}

// broadcast delivers payload to every subscriber of tok, best effort.
// A failed destination is closed and detached without affecting the rest.
// Returns the number of successful deliveries.
func (b *Broker) broadcast(tok string, payload []byte) int {
	set := b.subs[tok]
	conns := make([]*Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}

	delivered := 0
	for _, c := range conns {
		if err := c.writer.Write(payload); err != nil {
			log.Printf("relay: dropping connection %s: %v", c.ID, err)
			b.handleDetach(c)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broker) writeTo(c *Conn, payload []byte) {
	if err := c.writer.Write(payload); err != nil {
		b.handleDetach(c)
	}
}

func (b *Broker) writeError(c *Conn, msg string) {
	b.writeTo(c, marshalMessage(serverMessage{Type: TypeError, Error: msg}))
}
