package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository interface {
	// Append stores msg as the next entry of its conversation. It fills in
	// ID, Seq and CreatedAt. The message and the conversation head commit
	// together or not at all.
	Append(ctx context.Context, msg *model.Message) error
	// ListByConversation returns messages with seq > afterSeq in ascending
	// seq order. limit <= 0 means no limit.
	ListByConversation(ctx context.Context, convID string, afterSeq int64, limit int) ([]model.Message, error)
}

type messageRepository struct {
	db  *gorm.DB
	seq Sequencer
	now func() time.Time
}

func NewMessageRepository(db *gorm.DB, seq Sequencer) MessageRepository {
	return &messageRepository{db: db, seq: seq, now: time.Now}
}

func (r *messageRepository) Append(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cv model.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cv, "id = ?", msg.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("conversation", msg.ConversationID)
			}
			return err
		}
		stampMessage(msg, &cv, r.seq.Generate(), r.now())
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", cv.ID).
			Updates(map[string]interface{}{
				"last_seq":        cv.LastSeq,
				"last_message_at": cv.LastMessageAt,
			}).Error
	})
}

func (r *messageRepository) ListByConversation(ctx context.Context, convID string, afterSeq int64, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq > ?", convID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	msgs := make([]model.Message, 0)
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
