// Package events persists outbound domain events for the notification layer.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventGigCreated  = "gig.created"
	EventGigUpdated  = "gig.updated"
	EventFeeCleared  = "fee.cleared"
	EventFeeDisputed = "fee.disputed"
	EventGigRefunded = "gig.refunded"
)

// Event is one outbound notification. DedupeKey makes publication
// idempotent under retries.
type Event struct {
	Type      string
	Payload   map[string]any
	DedupeKey string
}

type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(log *zap.Logger, genID *snowflake.Node) *Outbox {
	return &Outbox{
		log:   log.Named("events.outbox"),
		genID: genID,
	}
}

// PublishTx appends the event inside the caller's transaction so the event
// is only visible if the surrounding state change commits.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, event_type, dedupe_key, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.Type,
		event.DedupeKey,
		string(payload),
		time.Now().UTC(),
	).Error
}
