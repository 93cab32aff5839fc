package service

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/service/mocks"
	"github.com/shinyyama/rental-backend/internal/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	tenantID   = "u-tenant"
	ownerID    = "u-owner"
	strangerID = "u-stranger"
)

type fixture struct {
	store    *repository.Store
	dir      *mocks.MockDirectory
	notifier *mocks.MockNotifier
	convs    ConversationService
	msgs     MessageService
	listing  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	store := repository.NewBadgerStore(db, node)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:    store,
		dir:      mocks.NewMockDirectory(ctrl),
		notifier: mocks.NewMockNotifier(ctrl),
		listing:  uuid.NewString(),
	}
	f.convs = NewConversationService(store.Conversations, f.dir, Settings{})
	f.msgs = NewMessageService(store.Conversations, store.Messages, f.notifier, Settings{})
	return f
}

// directoryKnows wires the usual L1 -> owner catalog into the directory mock.
func (f *fixture) directoryKnows() {
	f.dir.EXPECT().OwnerOf(gomock.Any(), f.listing).Return(ownerID, nil).AnyTimes()
	f.dir.EXPECT().UserExists(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, uid string) (bool, error) {
			return uid == tenantID || uid == ownerID || uid == strangerID, nil
		}).AnyTimes()
}
