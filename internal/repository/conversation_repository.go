package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// Create inserts cv unless a conversation with the same listing and
	// participant pair exists, in which case it returns ErrDuplicate.
	Create(ctx context.Context, cv *model.Conversation) error
	FindByKey(ctx context.Context, listingID, userA, userB string) (*model.Conversation, error)
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByUser(ctx context.Context, uid string) ([]model.Conversation, error)
}

type conversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db, now: time.Now}
}

func (r *conversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	prepareConversation(cv, r.now())
	if err := r.db.WithContext(ctx).Create(cv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: conversation for listing %s", ErrDuplicate, cv.ListingID)
		}
		return err
	}
	return nil
}

func (r *conversationRepository) FindByKey(ctx context.Context, listingID, userA, userB string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	a, b := model.SortedPair(userA, userB)
	var cv model.Conversation
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND participant_a = ? AND participant_b = ?", listingID, a, b).
		First(&cv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("conversation for listing", listingID)
		}
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Conversation
	if err := r.db.WithContext(ctx).First(&cv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("conversation", id)
		}
		return nil, err
	}
	return &cv, nil
}

func (r *conversationRepository) FindByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Conversation
	if err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", uid, uid).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
