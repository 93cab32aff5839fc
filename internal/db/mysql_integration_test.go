//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/snowflake"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testStore *repository.Store

// TestMain starts one MySQL container for the whole package.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "root",
				"MYSQL_DATABASE":      "rental",
			},
			WaitingFor: wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start MySQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	conn, err := ConnectDSN(fmt.Sprintf("root:root@tcp(%s:%s)/rental?charset=utf8mb4&parseTime=True&loc=UTC", host, port.Port()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	if err := repository.AutoMigrate(conn); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	testStore = repository.NewGormStore(conn, node)

	code := m.Run()

	_ = testStore.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestMySQL_ConcurrentCreateCommitsOneRow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	listingID := uuid.NewString()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = testStore.Conversations.Create(ctx, &model.Conversation{
				ListingID:    listingID,
				ParticipantA: "tenant",
				ParticipantB: "owner",
				InitiatorID:  "tenant",
			})
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		req.ErrorIs(err, repository.ErrDuplicate)
	}
	req.Equal(1, created)

	cv, err := testStore.Conversations.FindByKey(ctx, listingID, "owner", "tenant")
	req.NoError(err)
	req.Equal("tenant", cv.InitiatorID)
}

func TestMySQL_AppendKeepsOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	cv := &model.Conversation{ListingID: uuid.NewString(), ParticipantA: "tenant", ParticipantB: "owner", InitiatorID: "tenant"}
	req.NoError(testStore.Conversations.Create(ctx, cv))

	errs := make([]error, 10)
	var wg sync.WaitGroup
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = testStore.Messages.Append(ctx, &model.Message{ConversationID: cv.ID, SenderID: "tenant", Content: "hi"})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		req.NoError(err)
	}

	msgs, err := testStore.Messages.ListByConversation(ctx, cv.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 10)
	for i := 1; i < len(msgs); i++ {
		req.Less(msgs[i-1].Seq, msgs[i].Seq)
		req.False(msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}

	again, err := testStore.Messages.ListByConversation(ctx, cv.ID, 0, 0)
	req.NoError(err)
	req.Equal(msgs, again)

	_, err = testStore.Conversations.FindByID(ctx, uuid.NewString())
	req.ErrorIs(err, repository.ErrNotFound)
}
