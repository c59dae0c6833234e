// Package notifier implements the poll-based fallback path: a per-client
// loop that scans the document tables for fresh rows and pushes new_upload
// events over a one-way stream. It is independent of the relay broker, so
// the desktop converges even when the push path never ran. Delivery is
// at-least-once; consumers dedupe by (docType, id).
package notifier

import (
	"context"
	"log"
	"time"

	"scanbridge/internal/model"
)

const (
	EventConnected = "connected"
	EventNewUpload = "new_upload"
	EventReconnect = "reconnect"
)

// Querier reads recently created rows from one watched document table.
type Querier interface {
	RecentUploads(ctx context.Context, dt model.DocType, since time.Time, limit int) ([]model.Upload, error)
}

// Sink is the outbound half of one client stream. A write error means the
// transport is gone and the loop must stop.
type Sink interface {
	Event(name string, data any) error
	Comment(text string) error
}

// UploadEvent is the wire payload of one new_upload event.
type UploadEvent struct {
	DocType    string `json:"docType"`
	Label      string `json:"label"`
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	UploadedBy string `json:"uploadedBy"`
	Page       string `json:"page"`
}

type Options struct {
	Interval       time.Duration // poll interval
	Margin         time.Duration // trailing-window safety margin
	Lifetime       time.Duration // stream runtime budget before reconnect
	Limit          int           // max rows per table per tick
	HeartbeatTicks int           // ticks between heartbeat comments
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Second
	}
	if o.Margin <= 0 {
		o.Margin = 2 * time.Second
	}
	if o.Lifetime <= 0 {
		o.Lifetime = 5 * time.Minute
	}
	if o.Limit <= 0 {
		o.Limit = 10
	}
	if o.HeartbeatTicks <= 0 {
		o.HeartbeatTicks = 3
	}
}

// Notifier runs one polling loop per connected desktop client. Loops share
// the querier read-only, so they need no coordination with each other.
type Notifier struct {
	querier  Querier
	docTypes []model.DocType
	opts     Options
	now      func() time.Time
}

func New(querier Querier, docTypes []model.DocType, opts Options) *Notifier {
	opts.applyDefaults()
	return &Notifier{
		querier:  querier,
		docTypes: docTypes,
		opts:     opts,
		now:      time.Now,
	}
}

// Run drives one client stream until the runtime budget is spent, the
// transport drops, or ctx is cancelled. The reconnect event at the end of a
// healthy stream tells the client to reopen immediately, which bounds
// server-side resource lifetime without losing events.
func (n *Notifier) Run(ctx context.Context, sink Sink) error {
	if err := sink.Event(EventConnected, map[string]bool{"ok": true}); err != nil {
		return err
	}

	deadline := n.now().Add(n.opts.Lifetime)
	ticker := time.NewTicker(n.opts.Interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !n.now().Before(deadline) {
			return sink.Event(EventReconnect, map[string]bool{"reconnect": true})
		}

		if err := n.poll(ctx, sink); err != nil {
			return err
		}

		ticks++
		if ticks%n.opts.HeartbeatTicks == 0 {
			if err := sink.Comment("ping"); err != nil {
				return err
			}
		}
	}
}

// poll scans every watched table once. Query failures are transient: log
// and move on to the next table or tick. Sink failures are fatal to the
// stream and propagate.
func (n *Notifier) poll(ctx context.Context, sink Sink) error {
	since := n.now().Add(-(n.opts.Interval + n.opts.Margin))
	for _, dt := range n.docTypes {
		uploads, err := n.querier.RecentUploads(ctx, dt, since, n.opts.Limit)
		if err != nil {
			log.Printf("notifier: poll %s failed: %v", dt.Table, err)
			continue
		}
		for _, u := range uploads {
			ev := UploadEvent{
				DocType:    u.DocType,
				Label:      u.Label,
				ID:         u.ID,
				Title:      u.Title,
				UploadedBy: u.UploadedBy,
				Page:       u.Page,
			}
			if err := sink.Event(EventNewUpload, ev); err != nil {
				return err
			}
		}
	}
	return nil
}
