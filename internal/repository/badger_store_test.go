package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/snowflake"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := NewBadgerStore(db, node)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newConversation(listingID, initiator, owner string) *model.Conversation {
	return &model.Conversation{
		ListingID:    listingID,
		ParticipantA: initiator,
		ParticipantB: owner,
		InitiatorID:  initiator,
	}
}

func Test_Create_And_Find_By_Unordered_Pair(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	cv := newConversation("listing-1", "tenant", "owner")
	req.NoError(store.Conversations.Create(ctx, cv))
	req.NotEmpty(cv.ID)
	req.False(cv.CreatedAt.IsZero())
	req.Equal([]string{"tenant", "owner"}, cv.Participants())

	found, err := store.Conversations.FindByKey(ctx, "listing-1", "owner", "tenant")
	req.NoError(err)
	req.Equal(cv.ID, found.ID)

	byID, err := store.Conversations.FindByID(ctx, cv.ID)
	req.NoError(err)
	req.Equal("tenant", byID.InitiatorID)

	_, err = store.Conversations.FindByKey(ctx, "listing-2", "owner", "tenant")
	req.ErrorIs(err, ErrNotFound)
	_, err = store.Conversations.FindByID(ctx, uuid.NewString())
	req.ErrorIs(err, ErrNotFound)
}

func Test_Create_Rejects_Same_Key(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	req.NoError(store.Conversations.Create(ctx, newConversation("listing-1", "tenant", "owner")))
	err := store.Conversations.Create(ctx, newConversation("listing-1", "owner", "tenant"))
	req.ErrorIs(err, ErrDuplicate)

	// another listing with the same pair is a different conversation
	req.NoError(store.Conversations.Create(ctx, newConversation("listing-2", "tenant", "owner")))
}

func Test_Concurrent_Create_Commits_One_Row(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []string
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cv := newConversation("listing-1", "tenant", "owner")
			err := store.Conversations.Create(ctx, cv)
			if err == nil {
				mu.Lock()
				created = append(created, cv.ID)
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrDuplicate) && !errors.Is(err, ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	req.Len(created, 1)
	found, err := store.Conversations.FindByKey(ctx, "listing-1", "tenant", "owner")
	req.NoError(err)
	req.Equal(created[0], found.ID)

	list, err := store.Conversations.FindByUser(ctx, "owner")
	req.NoError(err)
	req.Len(list, 1)
}

func Test_Find_By_User_Is_Stable(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	req.NoError(store.Conversations.Create(ctx, newConversation("listing-1", "alice", "owner")))
	req.NoError(store.Conversations.Create(ctx, newConversation("listing-2", "alice", "owner")))
	req.NoError(store.Conversations.Create(ctx, newConversation("listing-1", "bob", "owner")))

	first, err := store.Conversations.FindByUser(ctx, "alice")
	req.NoError(err)
	req.Len(first, 2)
	for _, cv := range first {
		req.True(cv.HasParticipant("alice"))
	}
	second, err := store.Conversations.FindByUser(ctx, "alice")
	req.NoError(err)
	req.Equal(first, second)

	owner, err := store.Conversations.FindByUser(ctx, "owner")
	req.NoError(err)
	req.Len(owner, 3)

	none, err := store.Conversations.FindByUser(ctx, "nobody")
	req.NoError(err)
	req.Empty(none)
}

func Test_Colon_Ids_Do_Not_Share_Keys(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	first := newConversation("listing-1", "x:y", "z")
	req.NoError(store.Conversations.Create(ctx, first))

	_, err := store.Conversations.FindByKey(ctx, "listing-1", "x", "y:z")
	req.ErrorIs(err, ErrNotFound)

	second := newConversation("listing-1", "x", "y:z")
	req.NoError(store.Conversations.Create(ctx, second))
	req.NotEqual(first.ID, second.ID)

	found, err := store.Conversations.FindByKey(ctx, "listing-1", "y:z", "x")
	req.NoError(err)
	req.Equal(second.ID, found.ID)
	req.True(found.HasParticipant("x"))
	req.True(found.HasParticipant("y:z"))
}

func Test_Find_By_User_Matches_Whole_Id(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	req.NoError(store.Conversations.Create(ctx, newConversation("listing-1", "alice:x", "owner")))

	none, err := store.Conversations.FindByUser(ctx, "alice")
	req.NoError(err)
	req.Empty(none)

	req.NoError(store.Conversations.Create(ctx, newConversation("listing-1", "alice", "owner")))
	mine, err := store.Conversations.FindByUser(ctx, "alice")
	req.NoError(err)
	req.Len(mine, 1)
	req.True(mine[0].HasParticipant("alice"))

	theirs, err := store.Conversations.FindByUser(ctx, "alice:x")
	req.NoError(err)
	req.Len(theirs, 1)
	req.True(theirs[0].HasParticipant("alice:x"))
}

func Test_Append_Orders_Messages(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	cv := newConversation("listing-1", "tenant", "owner")
	req.NoError(store.Conversations.Create(ctx, cv))

	contents := []string{"Is it available?", "Yes", "Can I visit tomorrow?", "Sure"}
	senders := []string{"tenant", "owner", "tenant", "owner"}
	for i := range contents {
		msg := &model.Message{ConversationID: cv.ID, SenderID: senders[i], Content: contents[i]}
		req.NoError(store.Messages.Append(ctx, msg))
		req.NotEmpty(msg.ID)
		req.NotZero(msg.Seq)
	}

	msgs, err := store.Messages.ListByConversation(ctx, cv.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, len(contents))
	for i, m := range msgs {
		req.Equal(contents[i], m.Content)
		if i > 0 {
			req.Greater(m.Seq, msgs[i-1].Seq)
			req.False(m.CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}

	again, err := store.Messages.ListByConversation(ctx, cv.ID, 0, 0)
	req.NoError(err)
	req.Equal(msgs, again)

	page, err := store.Messages.ListByConversation(ctx, cv.ID, msgs[1].Seq, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(msgs[2].ID, page[0].ID)

	past, err := store.Messages.ListByConversation(ctx, cv.ID, math.MaxInt64, 0)
	req.NoError(err)
	req.Empty(past)

	head, err := store.Conversations.FindByID(ctx, cv.ID)
	req.NoError(err)
	req.Equal(msgs[3].Seq, head.LastSeq)
	req.NotNil(head.LastMessageAt)
}

func Test_Append_Unknown_Conversation(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)

	err := store.Messages.Append(context.Background(), &model.Message{ConversationID: "missing", SenderID: "a", Content: "hi"})
	req.ErrorIs(err, ErrNotFound)

	msgs, err := store.Messages.ListByConversation(context.Background(), "missing", 0, 0)
	req.NoError(err)
	req.Empty(msgs)
}

func Test_Append_Keeps_Timestamps_Non_Decreasing(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()
	repo := store.Messages.(*badgerMessageRepository)

	cv := newConversation("listing-1", "tenant", "owner")
	req.NoError(store.Conversations.Create(ctx, cv))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	first := &model.Message{ConversationID: cv.ID, SenderID: "tenant", Content: "one"}
	req.NoError(repo.Append(ctx, first))

	repo.now = func() time.Time { return base.Add(-time.Minute) }
	second := &model.Message{ConversationID: cv.ID, SenderID: "owner", Content: "two"}
	req.NoError(repo.Append(ctx, second))

	req.Equal(first.CreatedAt, second.CreatedAt)
	req.Greater(second.Seq, first.Seq)
}

func Test_Concurrent_Appends_All_Commit(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	cv := newConversation("listing-1", "tenant", "owner")
	req.NoError(store.Conversations.Create(ctx, cv))

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Messages.Append(ctx, &model.Message{ConversationID: cv.ID, SenderID: "tenant", Content: "ping"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	msgs, err := store.Messages.ListByConversation(ctx, cv.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, writers)
	for i := 1; i < len(msgs); i++ {
		req.Greater(msgs[i].Seq, msgs[i-1].Seq)
	}
}

func Test_Directory_Lookups(t *testing.T) {
	req := require.New(t)
	store := newTestBadgerStore(t)
	ctx := context.Background()

	req.NoError(store.Directory.SaveUser(ctx, &model.User{ID: "owner", Name: "Olga", Role: model.RoleOwner}))
	req.NoError(store.Directory.SaveListing(ctx, &model.Listing{ID: "listing-1", OwnerID: "owner", Title: "Flat"}))

	ok, err := store.Directory.UserExists(ctx, "owner")
	req.NoError(err)
	req.True(ok)
	ok, err = store.Directory.UserExists(ctx, "ghost")
	req.NoError(err)
	req.False(ok)

	owner, err := store.Directory.OwnerOf(ctx, "listing-1")
	req.NoError(err)
	req.Equal("owner", owner)
	_, err = store.Directory.OwnerOf(ctx, "listing-404")
	req.ErrorIs(err, ErrNotFound)

	u, err := store.Directory.FindUser(ctx, "owner")
	req.NoError(err)
	req.Equal(model.RoleOwner, u.Role)
}

func Test_Closed_Store_Is_Not_Ready(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	node, err := snowflake.NewNode(1)
	req.NoError(err)
	store := NewBadgerStore(db, node)
	req.NoError(store.Close())

	_, err = store.Conversations.FindByID(context.Background(), "x")
	req.ErrorIs(err, ErrDBNotReady)
}
