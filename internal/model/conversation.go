package model

import (
	"time"

	"github.com/samber/lo"
)

// Conversation pairs exactly two users around one listing. ParticipantA and
// ParticipantB hold the pair in sorted order so the unique index covers the
// unordered pair.
type Conversation struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	ListingID     string     `gorm:"column:listing_id;size:36;not null;uniqueIndex:uk_conversations_listing_pair,priority:1" json:"listingId"`
	ParticipantA  string     `gorm:"column:participant_a;size:128;not null;uniqueIndex:uk_conversations_listing_pair,priority:2;index" json:"participantA"`
	ParticipantB  string     `gorm:"column:participant_b;size:128;not null;uniqueIndex:uk_conversations_listing_pair,priority:3;index" json:"participantB"`
	InitiatorID   string     `gorm:"column:initiator_id;size:128;not null" json:"initiatorId"`
	LastSeq       int64      `gorm:"column:last_seq;not null;default:0" json:"lastSeq"`
	LastMessageAt *time.Time `gorm:"column:last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// SortedPair orders two user ids the way they are stored.
func SortedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Participants returns the initiator first, then the counterpart.
func (c Conversation) Participants() []string {
	if c.InitiatorID == c.ParticipantB {
		return []string{c.ParticipantB, c.ParticipantA}
	}
	return []string{c.ParticipantA, c.ParticipantB}
}

func (c Conversation) HasParticipant(uid string) bool {
	return uid != "" && lo.Contains(c.Participants(), uid)
}

// Others returns every participant except uid.
func (c Conversation) Others(uid string) []string {
	return lo.Without(c.Participants(), uid)
}

type ConversationView struct {
	ID             string     `json:"id"`
	ListingID      string     `json:"listingId"`
	ParticipantIDs []string   `json:"participantIds"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
}

func (c Conversation) View() ConversationView {
	return ConversationView{
		ID:             c.ID,
		ListingID:      c.ListingID,
		ParticipantIDs: c.Participants(),
		CreatedAt:      c.CreatedAt.UTC(),
		LastMessageAt:  c.LastMessageAt,
	}
}
