package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/store"
)

// Job is the in-flight reminder work item. It lives only between enqueue and
// completion; durable state stays in the appointment row and reminder log.
type Job struct {
	ID            string             `json:"id"`
	AppointmentID uuid.UUID          `json:"appointment_id"`
	Kind          store.ReminderKind `json:"kind"`
	Attempts      int                `json:"attempts"`
}

// JobKey derives a deterministic identity from the (appointment, kind) pair
// and the window epoch, so a scheduler that fires twice inside one epoch
// produces the same key and the queue backend can deduplicate.
func JobKey(appointmentID uuid.UUID, kind store.ReminderKind, windowEpoch time.Time) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", appointmentID, kind, windowEpoch.UTC().Unix())))
	return hex.EncodeToString(h[:])
}

// Encode serializes a job for the queue.
func (j Job) Encode() (string, error) {
	body, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("queue: encode job: %w", err)
	}
	return string(body), nil
}

// DecodeJob parses and validates a queue message body.
func DecodeJob(body string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(body), &j); err != nil {
		return Job{}, fmt.Errorf("queue: decode job: %w", err)
	}
	if j.AppointmentID == uuid.Nil {
		return Job{}, errors.New("queue: job missing appointment id")
	}
	if !j.Kind.Valid() {
		return Job{}, fmt.Errorf("queue: unknown reminder kind %q", j.Kind)
	}
	return j, nil
}
