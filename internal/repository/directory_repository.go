package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

// DirectoryRepository resolves users and listing ownership.
type DirectoryRepository interface {
	OwnerOf(ctx context.Context, listingID string) (string, error)
	UserExists(ctx context.Context, uid string) (bool, error)
	FindUser(ctx context.Context, uid string) (*model.User, error)
	FindListing(ctx context.Context, id string) (*model.Listing, error)
	SaveUser(ctx context.Context, u *model.User) error
	SaveListing(ctx context.Context, l *model.Listing) error
}

type directoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) OwnerOf(ctx context.Context, listingID string) (string, error) {
	l, err := r.FindListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	return l.OwnerID, nil
}

func (r *directoryRepository) UserExists(ctx context.Context, uid string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", uid).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *directoryRepository) FindUser(ctx context.Context, uid string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", uid)
		}
		return nil, err
	}
	return &u, nil
}

func (r *directoryRepository) FindListing(ctx context.Context, id string) (*model.Listing, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var l model.Listing
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("listing", id)
		}
		return nil, err
	}
	return &l, nil
}

func (r *directoryRepository) SaveUser(ctx context.Context, u *model.User) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *directoryRepository) SaveListing(ctx context.Context, l *model.Listing) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Save(l).Error
}
