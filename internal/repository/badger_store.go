package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shinyyama/rental-backend/internal/model"
)

// Key layout:
//
//	user:{id}                          -> model.User
//	listing:{id}                       -> model.Listing
//	conv:{id}                          -> model.Conversation
//	convkey:{#listing}{#a}{#b}         -> conversation id (a < b)
//	member:{#uid}{conversation id}     -> empty
//	msg:{#conversation id}{seq:019}    -> model.Message
//
// {#s} is the length-prefixed segment "len:s", so ids may contain any
// byte, colons included, without two tuples sharing a key or one
// user's member prefix covering another's. The zero-padded seq keeps a
// prefix scan in message order.

const (
	maxAppendAttempts = 8
	appendStripes     = 64
)

// OpenBadger opens the database under dir. A nil logger keeps badger's
// default stderr logger.
func OpenBadger(dir string, logger badger.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if logger != nil {
		opts = opts.WithLogger(logger)
	}
	return badger.Open(opts)
}

func userKey(id string) []byte    { return []byte("user:" + id) }
func listingKey(id string) []byte { return []byte("listing:" + id) }
func convRecordKey(id string) []byte {
	return []byte("conv:" + id)
}
func segment(s string) string {
	return strconv.Itoa(len(s)) + ":" + s
}
func convIndexKey(listingID, a, b string) []byte {
	return []byte("convkey:" + segment(listingID) + segment(a) + segment(b))
}
func memberPrefix(uid string) []byte { return []byte("member:" + segment(uid)) }
func memberKey(uid, convID string) []byte {
	return append(memberPrefix(uid), convID...)
}
func msgPrefix(convID string) []byte { return []byte("msg:" + segment(convID)) }
func msgKey(convID string, seq int64) []byte {
	return fmt.Appendf(msgPrefix(convID), "%019d", seq)
}

func translateBadger(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %v", ErrDBNotReady, err)
	}
	return err
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

type badgerConversationRepository struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadgerConversationRepository(db *badger.DB) ConversationRepository {
	return &badgerConversationRepository{db: db, now: time.Now}
}

func (r *badgerConversationRepository) Create(ctx context.Context, cv *model.Conversation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	prepareConversation(cv, r.now())
	idx := convIndexKey(cv.ListingID, cv.ParticipantA, cv.ParticipantB)
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(idx)
		if err == nil {
			return fmt.Errorf("%w: conversation for listing %s", ErrDuplicate, cv.ListingID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, convRecordKey(cv.ID), cv); err != nil {
			return err
		}
		if err := txn.Set(idx, []byte(cv.ID)); err != nil {
			return err
		}
		if err := txn.Set(memberKey(cv.ParticipantA, cv.ID), nil); err != nil {
			return err
		}
		return txn.Set(memberKey(cv.ParticipantB, cv.ID), nil)
	})
	return translateBadger(err)
}

func (r *badgerConversationRepository) FindByKey(ctx context.Context, listingID, userA, userB string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, b := model.SortedPair(userA, userB)
	var cv model.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(convIndexKey(listingID, a, b))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, convRecordKey(string(id)), &cv)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("conversation for listing", listingID)
	}
	if err != nil {
		return nil, translateBadger(err)
	}
	return &cv, nil
}

func (r *badgerConversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cv model.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, convRecordKey(id), &cv)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("conversation", id)
	}
	if err != nil {
		return nil, translateBadger(err)
	}
	return &cv, nil
}

func (r *badgerConversationRepository) FindByUser(ctx context.Context, uid string) ([]model.Conversation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	list := make([]model.Conversation, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(uid)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		var ids []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)))
		}
		for _, id := range ids {
			var cv model.Conversation
			if err := getJSON(txn, convRecordKey(id), &cv); err != nil {
				return err
			}
			list = append(list, cv)
		}
		return nil
	})
	if err != nil {
		return nil, translateBadger(err)
	}
	slices.SortFunc(list, func(x, y model.Conversation) int {
		if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
			return c
		}
		switch {
		case x.ID > y.ID:
			return -1
		case x.ID < y.ID:
			return 1
		}
		return 0
	})
	return list, nil
}

type badgerMessageRepository struct {
	db  *badger.DB
	seq Sequencer
	now func() time.Time
	// appends to one conversation are serialized in-process so badger
	// conflicts only come from other writers of the same directory
	stripes [appendStripes]sync.Mutex
}

func NewBadgerMessageRepository(db *badger.DB, seq Sequencer) MessageRepository {
	return &badgerMessageRepository{db: db, seq: seq, now: time.Now}
}

func (r *badgerMessageRepository) Append(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	mu := r.stripe(msg.ConversationID)
	mu.Lock()
	defer mu.Unlock()
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.db.Update(func(txn *badger.Txn) error {
			var cv model.Conversation
			if err := getJSON(txn, convRecordKey(msg.ConversationID), &cv); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return notFound("conversation", msg.ConversationID)
				}
				return err
			}
			stampMessage(msg, &cv, r.seq.Generate(), r.now())
			if err := setJSON(txn, msgKey(msg.ConversationID, msg.Seq), msg); err != nil {
				return err
			}
			return setJSON(txn, convRecordKey(cv.ID), cv)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return translateBadger(err)
	}
	return fmt.Errorf("%w: append to conversation %s", ErrConflict, msg.ConversationID)
}

func (r *badgerMessageRepository) stripe(convID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(convID))
	return &r.stripes[h.Sum32()%appendStripes]
}

func (r *badgerMessageRepository) ListByConversation(ctx context.Context, convID string, afterSeq int64, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, 0)
	if afterSeq == math.MaxInt64 {
		return msgs, nil
	}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := msgPrefix(convID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(msgKey(convID, afterSeq+1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(msgs) == limit {
				break
			}
			var m model.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, translateBadger(err)
	}
	return msgs, nil
}

type badgerDirectoryRepository struct {
	db *badger.DB
}

func NewBadgerDirectoryRepository(db *badger.DB) DirectoryRepository {
	return &badgerDirectoryRepository{db: db}
}

func (r *badgerDirectoryRepository) OwnerOf(ctx context.Context, listingID string) (string, error) {
	l, err := r.FindListing(ctx, listingID)
	if err != nil {
		return "", err
	}
	return l.OwnerID, nil
}

func (r *badgerDirectoryRepository) UserExists(ctx context.Context, uid string) (bool, error) {
	_, err := r.FindUser(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *badgerDirectoryRepository) FindUser(ctx context.Context, uid string) (*model.User, error) {
	var u model.User
	if err := r.get(ctx, userKey(uid), &u); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound("user", uid)
		}
		return nil, translateBadger(err)
	}
	return &u, nil
}

func (r *badgerDirectoryRepository) FindListing(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	if err := r.get(ctx, listingKey(id), &l); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound("listing", id)
		}
		return nil, translateBadger(err)
	}
	return &l, nil
}

func (r *badgerDirectoryRepository) SaveUser(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return r.set(ctx, userKey(u.ID), u)
}

func (r *badgerDirectoryRepository) SaveListing(ctx context.Context, l *model.Listing) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return r.set(ctx, listingKey(l.ID), l)
}

func (r *badgerDirectoryRepository) get(ctx context.Context, key []byte, dst any) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key, dst)
	})
}

func (r *badgerDirectoryRepository) set(ctx context.Context, key []byte, v any) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return translateBadger(r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, v)
	}))
}
