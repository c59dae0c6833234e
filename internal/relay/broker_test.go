package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeWriter collects everything the broker writes to one connection.
// Tests drive handle directly, which mirrors the single dispatch loop.
type fakeWriter struct {
	messages []serverMessage
	fail     bool
	closed   bool
}

func (w *fakeWriter) Write(message []byte) error {
	if w.fail {
		return errors.New("write failed")
	}
	var msg serverMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return err
	}
	w.messages = append(w.messages, msg)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) last() serverMessage {
	return w.messages[len(w.messages)-1]
}

const testToken = "deadbeefdeadbeefdeadbeefdeadbeef"

func attach(b *Broker, initial string) (*Conn, *fakeWriter) {
	w := &fakeWriter{}
	c := NewConn(w)
	b.handle(event{kind: evAttach, conn: c, initial: initial})
	return c, w
}

func inbound(t *testing.T, b *Broker, c *Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b.handle(event{kind: evInbound, conn: c, data: data})
}

func TestBroker_AttachGreeting(t *testing.T) {
	b := NewBroker(0)
	_, w := attach(b, "")
	if len(w.messages) != 1 || w.messages[0].Type != TypeConnected {
		t.Fatalf("expected connected greeting, got %+v", w.messages)
	}
	if w.messages[0].Token != "" {
		t.Fatalf("expected no token in greeting, got %q", w.messages[0].Token)
	}
}

func TestBroker_AttachAutoSubscribes(t *testing.T) {
	b := NewBroker(0)
	c, w := attach(b, testToken)
	if w.messages[0].Token != testToken {
		t.Fatalf("expected auto-subscribe token in greeting, got %q", w.messages[0].Token)
	}
	if c.token != testToken {
		t.Fatalf("expected subscription to %q, got %q", testToken, c.token)
	}
}

func TestBroker_PingPong(t *testing.T) {
	b := NewBroker(0)
	c, w := attach(b, "")
	inbound(t, b, c, map[string]any{"type": "ping"})
	if w.last().Type != TypePong {
		t.Fatalf("expected pong, got %+v", w.last())
	}
}

func TestBroker_SubscribeAndBroadcast(t *testing.T) {
	b := NewBroker(0)
	subA, wA := attach(b, "")
	subB, wB := attach(b, "")
	other, wOther := attach(b, "")
	sender, wSender := attach(b, "")

	inbound(t, b, subA, map[string]any{"type": "subscribe", "token": testToken})
	inbound(t, b, subB, map[string]any{"type": "subscribe", "token": testToken})
	inbound(t, b, other, map[string]any{"type": "subscribe", "token": strings.Repeat("ab", 16)})

	if wA.last().Type != TypeSubscribed || wA.last().Token != testToken {
		t.Fatalf("expected subscribed reply, got %+v", wA.last())
	}

	inbound(t, b, sender, map[string]any{
		"type":       "upload_complete",
		"token":      testToken,
		"docType":    "resolutions",
		"resultId":   42,
		"objectKeys": []string{"resolutions/2024/a.jpg"},
	})

	for name, w := range map[string]*fakeWriter{"A": wA, "B": wB} {
		got := w.last()
		if got.Type != TypeUploadComplete {
			t.Fatalf("subscriber %s: expected upload_complete, got %+v", name, got)
		}
		if got.ResultID == nil || *got.ResultID != 42 {
			t.Fatalf("subscriber %s: expected resultId 42, got %+v", name, got.ResultID)
		}
		if len(got.ObjectKeys) != 1 || got.ObjectKeys[0] != "resolutions/2024/a.jpg" {
			t.Fatalf("subscriber %s: unexpected objectKeys %v", name, got.ObjectKeys)
		}
	}

	if wOther.last().Type == TypeUploadComplete {
		t.Fatalf("connection on another token must not receive the broadcast")
	}

	ack := wSender.last()
	if ack.Type != TypeAck || ack.Delivered == nil || *ack.Delivered != 2 {
		t.Fatalf("expected ack with delivered=2, got %+v", ack)
	}
}

func TestBroker_ResubscribeReplacesPrevious(t *testing.T) {
	b := NewBroker(0)
	c, _ := attach(b, "")
	sender, _ := attach(b, "")
	second := strings.Repeat("ab", 16)

	inbound(t, b, c, map[string]any{"type": "subscribe", "token": testToken})
	inbound(t, b, c, map[string]any{"type": "subscribe", "token": second})

	inbound(t, b, sender, map[string]any{"type": "upload_complete", "token": testToken})
	ack := senderLast(t, sender)
	if *ack.Delivered != 0 {
		t.Fatalf("expected 0 deliveries on abandoned token, got %d", *ack.Delivered)
	}
	if _, ok := b.subs[testToken]; ok {
		t.Fatalf("expected empty token entry to be removed")
	}

	inbound(t, b, sender, map[string]any{"type": "upload_complete", "token": second})
	ack = senderLast(t, sender)
	if *ack.Delivered != 1 {
		t.Fatalf("expected 1 delivery on new token, got %d", *ack.Delivered)
	}
}

func senderLast(t *testing.T, c *Conn) serverMessage {
	t.Helper()
	w, ok := c.writer.(*fakeWriter)
	if !ok {
		t.Fatalf("unexpected writer type")
	}
	msg := w.last()
	if msg.Type != TypeAck || msg.Delivered == nil {
		t.Fatalf("expected ack, got %+v", msg)
	}
	return msg
}

func TestBroker_DetachCleansUpSubscription(t *testing.T) {
	b := NewBroker(0)
	c, w := attach(b, testToken)
	b.handle(event{kind: evDetach, conn: c})

	if !w.closed {
		t.Fatalf("expected writer closed on detach")
	}
	if _, ok := b.subs[testToken]; ok {
		t.Fatalf("expected token entry removed once last subscriber left")
	}

	sender, _ := attach(b, "")
	inbound(t, b, sender, map[string]any{"type": "upload_complete", "token": testToken})
	ack := senderLast(t, sender)
	if *ack.Delivered != 0 {
		t.Fatalf("broadcast to empty token must deliver to zero recipients, got %d", *ack.Delivered)
	}
}

func TestBroker_InvalidTokenError(t *testing.T) {
	b := NewBroker(0)
	c, w := attach(b, "")
	inbound(t, b, c, map[string]any{"type": "subscribe", "token": "short"})
	if w.last().Type != TypeError {
		t.Fatalf("expected error reply, got %+v", w.last())
	}
	if _, ok := b.conns[c]; !ok {
		t.Fatalf("connection must stay open after a protocol error")
	}
}

func TestBroker_OversizedFrameDroppedSilently(t *testing.T) {
	b := NewBroker(16)
	_, wSub := attach(b, testToken)
	sender, wSender := attach(b, "")

	inbound(t, b, sender, map[string]any{
		"type":      "camera_frame",
		"token":     testToken,
		"frameData": strings.Repeat("x", 17),
	})

	if wSub.last().Type == TypeCameraFrame {
		t.Fatalf("oversized frame must not be broadcast")
	}
	if wSender.last().Type == TypeError {
		t.Fatalf("oversized frame must not produce an error reply")
	}
}

func TestBroker_CameraFrameBroadcastNoAck(t *testing.T) {
	b := NewBroker(0)
	_, wSub := attach(b, testToken)
	sender, wSender := attach(b, "")

	inbound(t, b, sender, map[string]any{
		"type":      "camera_frame",
		"token":     testToken,
		"frameData": "abc",
		"width":     640,
		"height":    480,
		"ts":        12345,
	})

	got := wSub.last()
	if got.Type != TypeCameraFrame || got.FrameData != "abc" || got.Width != 640 {
		t.Fatalf("expected frame broadcast, got %+v", got)
	}
	if wSender.last().Type != TypeConnected {
		t.Fatalf("camera_frame must not be acknowledged, got %+v", wSender.last())
	}
}

func TestBroker_CameraStatusBroadcast(t *testing.T) {
	b := NewBroker(0)
	_, wSub := attach(b, testToken)
	sender, _ := attach(b, "")

	inbound(t, b, sender, map[string]any{"type": "camera_status", "token": testToken, "status": "active"})
	got := wSub.last()
	if got.Type != TypeCameraStatus || got.Status != "active" {
		t.Fatalf("expected status broadcast, got %+v", got)
	}
}

func TestBroker_UnknownTypeIgnored(t *testing.T) {
	b := NewBroker(0)
	c, w := attach(b, "")
	inbound(t, b, c, map[string]any{"type": "teleport", "token": testToken})
	if len(w.messages) != 1 {
		t.Fatalf("unknown message types must be ignored, got %+v", w.messages)
	}
}

func TestBroker_FailedSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker(0)
	_, wGood := attach(b, testToken)
	bad, wBad := attach(b, testToken)
	wBad.fail = true
	sender, _ := attach(b, "")

	inbound(t, b, sender, map[string]any{"type": "upload_complete", "token": testToken})
	if wGood.last().Type != TypeUploadComplete {
		t.Fatalf("healthy subscriber must still receive the broadcast")
	}
	if !wBad.closed {
		t.Fatalf("failed subscriber must be closed")
	}
	if _, ok := b.conns[bad]; ok {
		t.Fatalf("failed subscriber must be detached")
	}
	ack := senderLast(t, sender)
	if *ack.Delivered != 1 {
		t.Fatalf("expected delivered=1, got %d", *ack.Delivered)
	}
}
