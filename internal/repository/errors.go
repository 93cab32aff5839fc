package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
)

var (
	ErrDBNotReady = errors.New("database not initialized")
	ErrNotFound   = errors.New("record not found")
	// ErrDuplicate means a row with the same unique key is already committed.
	ErrDuplicate = errors.New("duplicate key")
	// ErrConflict means a concurrent transaction touched the same keys; the
	// operation did not commit and may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// Sequencer supplies time-ordered values for message sequencing.
type Sequencer interface {
	Generate() int64
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

func prepareConversation(cv *model.Conversation, now time.Time) {
	if cv.ID == "" {
		cv.ID = uuid.NewString()
	}
	cv.ParticipantA, cv.ParticipantB = model.SortedPair(cv.ParticipantA, cv.ParticipantB)
	if cv.CreatedAt.IsZero() {
		cv.CreatedAt = now.UTC()
	}
}

// stampMessage assigns id, seq and timestamp for msg as the next entry of cv
// and advances cv's head accordingly.
func stampMessage(msg *model.Message, cv *model.Conversation, next int64, now time.Time) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Seq = max(cv.LastSeq+1, next)
	ts := now.UTC()
	if cv.LastMessageAt != nil && ts.Before(*cv.LastMessageAt) {
		ts = *cv.LastMessageAt
	}
	msg.CreatedAt = ts
	cv.LastSeq = msg.Seq
	cv.LastMessageAt = &ts
}
