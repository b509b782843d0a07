package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const callColumns = `
	id, conversation_id, appointment_id, status, transcript, summary,
	duration_secs, error_message, started_at, ended_at, created_at, updated_at`

// CreateCall inserts a new call record, normally right after the voice
// provider accepted an outbound call.
func (s *Store) CreateCall(ctx context.Context, c *Call) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = CallInitiated
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO calls (id, conversation_id, appointment_id, status, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ConversationID, c.AppointmentID, string(c.Status), c.StartedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: create call: %w", err)
	}
	return nil
}

// FindCallByConversationID resolves the local call for a provider webhook.
func (s *Store) FindCallByConversationID(ctx context.Context, conversationID string) (*Call, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE conversation_id = $1`, conversationID)

	var c Call
	var status string
	err := row.Scan(
		&c.ID, &c.ConversationID, &c.AppointmentID, &status, &c.Transcript, &c.Summary,
		&c.DurationSecs, &c.ErrorMessage, &c.StartedAt, &c.EndedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find call by conversation id: %w", err)
	}
	c.Status = CallStatus(status)
	return &c, nil
}

// CallUpdate carries the fields a webhook may set on a call. Nil fields are
// left untouched, so applying the same update twice is idempotent.
type CallUpdate struct {
	Status       *CallStatus
	Transcript   *string
	Summary      *string
	DurationSecs *int
	ErrorMessage *string
	EndedAt      *time.Time
}

// UpdateCall applies a partial update keyed by conversation id.
func (s *Store) UpdateCall(ctx context.Context, conversationID string, upd CallUpdate) error {
	var status *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE calls SET
			status = COALESCE($2, status),
			transcript = COALESCE($3, transcript),
			summary = COALESCE($4, summary),
			duration_secs = COALESCE($5, duration_secs),
			error_message = COALESCE($6, error_message),
			ended_at = COALESCE($7, ended_at),
			updated_at = $8
		WHERE conversation_id = $1`,
		conversationID, status, upd.Transcript, upd.Summary,
		upd.DurationSecs, upd.ErrorMessage, upd.EndedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: update call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
