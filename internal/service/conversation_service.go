package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/reqctx"
	"github.com/shinyyama/rental-backend/internal/repository"
)

const resolveAttempts = 3

type ConversationService interface {
	// Resolve returns the conversation between initiatorID and the owner of
	// listingID, creating it on first contact. Concurrent callers with the
	// same key all get the same conversation.
	Resolve(ctx context.Context, listingID, initiatorID string) (*model.Conversation, error)
	Get(ctx context.Context, convID, uid string) (*model.Conversation, error)
	ListByUser(ctx context.Context, uid string) ([]model.Conversation, error)
}

type conversationService struct {
	convRepo repository.ConversationRepository
	dir      Directory
	timeout  time.Duration
	log      *slog.Logger
}

func NewConversationService(convRepo repository.ConversationRepository, dir Directory, settings Settings) ConversationService {
	settings = settings.withDefaults()
	return &conversationService{
		convRepo: convRepo,
		dir:      dir,
		timeout:  settings.StoreTimeout,
		log:      settings.Logger,
	}
}

func (s *conversationService) Resolve(ctx context.Context, listingID, initiatorID string) (*model.Conversation, error) {
	if err := validateID("listing id", listingID); err != nil {
		return nil, err
	}
	if err := requireUser(initiatorID); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreDeadline(ctx, s.timeout)
	defer cancel()

	owner, err := s.dir.OwnerOf(ctx, listingID)
	if err != nil {
		return nil, storeError(err, "listing "+listingID)
	}
	ok, err := s.dir.UserExists(ctx, initiatorID)
	if err != nil {
		return nil, storeError(err, "user "+initiatorID)
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, initiatorID)
	}
	if owner == initiatorID {
		return nil, fmt.Errorf("%w: cannot start a conversation about your own listing", ErrForbidden)
	}

	log := reqctx.Logger(ctx, s.log).With("listing_id", listingID)
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		cv, err := s.convRepo.FindByKey(ctx, listingID, initiatorID, owner)
		if err == nil {
			return cv, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError(err, "conversation")
		}

		cv = &model.Conversation{
			ListingID:    listingID,
			ParticipantA: initiatorID,
			ParticipantB: owner,
			InitiatorID:  initiatorID,
		}
		err = s.convRepo.Create(ctx, cv)
		if err == nil {
			log.Info("conversation created", "conversation_id", cv.ID)
			return cv, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) && !errors.Is(err, repository.ErrConflict) {
			return nil, storeError(err, "conversation")
		}
		// someone else created it first; read theirs back
		log.Debug("conversation create lost race", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: conversation for listing %s", ErrConflict, listingID)
}

func (s *conversationService) Get(ctx context.Context, convID, uid string) (*model.Conversation, error) {
	if err := validateID("conversation id", convID); err != nil {
		return nil, err
	}
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreDeadline(ctx, s.timeout)
	defer cancel()

	return s.participantConversation(ctx, convID, uid)
}

func (s *conversationService) participantConversation(ctx context.Context, convID, uid string) (*model.Conversation, error) {
	cv, err := s.convRepo.FindByID(ctx, convID)
	if err != nil {
		return nil, storeError(err, "conversation "+convID)
	}
	if !cv.HasParticipant(uid) {
		return nil, fmt.Errorf("%w: not a participant", ErrForbidden)
	}
	return cv, nil
}

func (s *conversationService) ListByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	ctx, cancel := withStoreDeadline(ctx, s.timeout)
	defer cancel()

	list, err := s.convRepo.FindByUser(ctx, uid)
	if err != nil {
		return nil, storeError(err, "conversations")
	}
	return list, nil
}
