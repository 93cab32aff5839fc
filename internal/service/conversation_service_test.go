package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestConversationService_Resolve(t *testing.T) {
	t.Run("should return the same conversation on repeated calls", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.directoryKnows()
		ctx := context.Background()

		first, err := f.convs.Resolve(ctx, f.listing, tenantID)
		req.NoError(err)
		req.Equal([]string{tenantID, ownerID}, first.Participants())
		req.Equal(f.listing, first.ListingID)

		second, err := f.convs.Resolve(ctx, f.listing, tenantID)
		req.NoError(err)
		req.Equal(first.ID, second.ID)
	})

	t.Run("should create a single conversation under concurrent calls", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.directoryKnows()
		ctx := context.Background()

		const workers = 16
		ids := make([]string, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				cv, err := f.convs.Resolve(ctx, f.listing, tenantID)
				errs[i] = err
				if cv != nil {
					ids[i] = cv.ID
				}
			}()
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			req.NoError(errs[i])
			req.Equal(ids[0], ids[i])
		}
		list, err := f.store.Conversations.FindByUser(ctx, tenantID)
		req.NoError(err)
		req.Len(list, 1)
	})

	t.Run("should reject the owner contacting their own listing", func(t *testing.T) {
		f := newFixture(t)
		f.directoryKnows()

		_, err := f.convs.Resolve(context.Background(), f.listing, ownerID)
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("should report unknown listings as not found", func(t *testing.T) {
		f := newFixture(t)
		f.dir.EXPECT().OwnerOf(gomock.Any(), gomock.Any()).Return("", repository.ErrNotFound)

		_, err := f.convs.Resolve(context.Background(), uuid.NewString(), tenantID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should report unknown initiators as not found", func(t *testing.T) {
		f := newFixture(t)
		f.directoryKnows()

		_, err := f.convs.Resolve(context.Background(), f.listing, "u-ghost")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should reject a malformed listing id without touching the directory", func(t *testing.T) {
		f := newFixture(t)
		f.dir.EXPECT().OwnerOf(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.convs.Resolve(context.Background(), "not-a-uuid", tenantID)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("should surface directory outages as transient", func(t *testing.T) {
		f := newFixture(t)
		f.dir.EXPECT().OwnerOf(gomock.Any(), gomock.Any()).Return("", errors.New("connection refused"))

		_, err := f.convs.Resolve(context.Background(), f.listing, tenantID)
		require.ErrorIs(t, err, ErrTransient)
		require.NotContains(t, err.Error(), "connection refused")
	})
}

func TestConversationService_GetAndList(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.directoryKnows()
	ctx := context.Background()

	cv, err := f.convs.Resolve(ctx, f.listing, tenantID)
	req.NoError(err)

	got, err := f.convs.Get(ctx, cv.ID, ownerID)
	req.NoError(err)
	req.Equal(cv.ID, got.ID)

	_, err = f.convs.Get(ctx, cv.ID, strangerID)
	req.ErrorIs(err, ErrForbidden)

	_, err = f.convs.Get(ctx, uuid.NewString(), tenantID)
	req.ErrorIs(err, ErrNotFound)

	first, err := f.convs.ListByUser(ctx, ownerID)
	req.NoError(err)
	req.Len(first, 1)
	second, err := f.convs.ListByUser(ctx, ownerID)
	req.NoError(err)
	req.Equal(first, second)

	none, err := f.convs.ListByUser(ctx, strangerID)
	req.NoError(err)
	req.Empty(none)

	_, err = f.convs.ListByUser(ctx, "")
	req.ErrorIs(err, ErrInvalidArgument)
}

func TestStoreError(t *testing.T) {
	req := require.New(t)
	req.NoError(storeError(nil, "x"))
	req.ErrorIs(storeError(repository.ErrNotFound, "x"), ErrNotFound)
	req.ErrorIs(storeError(repository.ErrDuplicate, "x"), ErrConflict)
	req.ErrorIs(storeError(repository.ErrConflict, "x"), ErrConflict)
	req.ErrorIs(storeError(repository.ErrDBNotReady, "x"), ErrTransient)
	req.ErrorIs(storeError(context.DeadlineExceeded, "x"), ErrTransient)

	cause := errors.New("dial tcp: i/o timeout")
	err := storeError(cause, "message")
	req.ErrorIs(err, ErrTransient)
	req.ErrorIs(err, cause)
	req.Equal("temporarily unavailable: message", err.Error())
}

