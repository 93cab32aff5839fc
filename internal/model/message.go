package model

import "time"

// Message is one entry of a conversation's append-only log. Seq is the
// ordering key; CreatedAt never decreases along it.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;uniqueIndex:uk_messages_conversation_seq,priority:1" json:"conversationId"`
	SenderID       string    `gorm:"column:sender_id;size:128;not null;index" json:"senderId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Seq            int64     `gorm:"column:seq;not null;uniqueIndex:uk_messages_conversation_seq,priority:2" json:"seq"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Seq            int64     `json:"seq"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m Message) View() MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Seq:            m.Seq,
		Timestamp:      m.CreatedAt.UTC(),
	}
}
