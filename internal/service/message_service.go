package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/reqctx"
	"github.com/shinyyama/rental-backend/internal/repository"
)

type SendInput struct {
	ConversationID string
	SenderID       string
	// RecipientHint is what the client believes the recipient is. Delivery
	// targets come from the stored participant set; the hint is only logged
	// when it disagrees.
	RecipientHint string
	Content       string
}

type ListOptions struct {
	AfterSeq int64
	Limit    int
}

type MessageService interface {
	// Send authorizes the sender, persists the message and then pushes it to
	// every other participant. The returned message is the stored one.
	Send(ctx context.Context, in SendInput) (*model.Message, error)
	// List returns the conversation history in seq order.
	List(ctx context.Context, convID, uid string, opts ListOptions) ([]model.Message, error)
}

type messageService struct {
	conversations *conversationService
	msgRepo       repository.MessageRepository
	notifier      Notifier
	timeout       time.Duration
	log           *slog.Logger
}

func NewMessageService(convRepo repository.ConversationRepository, msgRepo repository.MessageRepository, notifier Notifier, settings Settings) MessageService {
	settings = settings.withDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &messageService{
		conversations: &conversationService{
			convRepo: convRepo,
			timeout:  settings.StoreTimeout,
			log:      settings.Logger,
		},
		msgRepo:  msgRepo,
		notifier: notifier,
		timeout:  settings.StoreTimeout,
		log:      settings.Logger,
	}
}

func (s *messageService) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	if err := validateID("conversation id", in.ConversationID); err != nil {
		return nil, err
	}
	if err := requireUser(in.SenderID); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreDeadline(ctx, s.timeout)
	defer cancel()

	cv, err := s.conversations.participantConversation(storeCtx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	// content is only judged once the sender is known to belong here
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, MaxContentLength)
	}
	recipients := cv.Others(in.SenderID)
	log := reqctx.Logger(ctx, s.log).With("conversation_id", cv.ID)
	if in.RecipientHint != "" && !lo.Contains(recipients, in.RecipientHint) {
		log.Warn("ignoring recipient hint outside conversation", "hint", in.RecipientHint)
	}

	msg := &model.Message{
		ConversationID: cv.ID,
		SenderID:       in.SenderID,
		Content:        content,
	}
	if err := s.msgRepo.Append(storeCtx, msg); err != nil {
		return nil, storeError(err, "message")
	}
	log.Debug("message stored", "message_id", msg.ID, "seq", msg.Seq)

	for _, uid := range recipients {
		s.notifier.Push(ctx, uid, *msg)
	}
	return msg, nil
}

func (s *messageService) List(ctx context.Context, convID, uid string, opts ListOptions) ([]model.Message, error) {
	if err := validateID("conversation id", convID); err != nil {
		return nil, err
	}
	if err := requireUser(uid); err != nil {
		return nil, err
	}
	if opts.AfterSeq < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative paging parameters", ErrInvalidArgument)
	}
	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}

	ctx, cancel := withStoreDeadline(ctx, s.timeout)
	defer cancel()

	if _, err := s.conversations.participantConversation(ctx, convID, uid); err != nil {
		return nil, err
	}
	msgs, err := s.msgRepo.ListByConversation(ctx, convID, opts.AfterSeq, opts.Limit)
	if err != nil {
		return nil, storeError(err, "messages")
	}
	return msgs, nil
}
