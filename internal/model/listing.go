package model

import "time"

// Listing is the slice of the catalog the messaging core needs: who owns it.
type Listing struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string    `gorm:"column:owner_id;size:128;not null;index" json:"ownerId"`
	Title     string    `gorm:"size:120;not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Listing) TableName() string {
	return "listings"
}
