package repositories

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"amora/domain"
	"amora/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_FindOrCreate_Returns_Same_Conversation_For_Both_Orders(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t), slog.Default())

	first, err := repository.FindOrCreate("alice", "bob")
	req.NoError(err)
	req.True(first.HasMember("alice"))
	req.True(first.HasMember("bob"))

	// Reversed pair resolves to the very same record.
	second, err := repository.FindOrCreate("bob", "alice")
	req.NoError(err)
	req.Equal(first.ID, second.ID)
}

func Test_FindOrCreate_Is_Unique_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t), slog.Default())

	const goroutines = 16
	ids := make([]domain.ConversationID, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := domain.UserID("alice"), domain.UserID("bob")
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repository.FindOrCreate(a, b)
			ids[i], errs[i] = conv.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
}

func Test_Get_Unknown_Conversation_Is_NotFound(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t), slog.Default())

	_, err := repository.Get("nope")
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_UpdateLastMessage_Refreshes_Summary(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t), slog.Default())

	conv, err := repository.FindOrCreate("alice", "bob")
	req.NoError(err)
	req.Nil(conv.LastMessage)

	at := time.Now().UTC()
	err = repository.UpdateLastMessage(conv.ID, domain.LastMessage{
		Body: "see you at 8", SenderID: "alice", CreatedAt: at,
	})
	req.NoError(err)

	fetched, err := repository.Get(conv.ID)
	req.NoError(err)
	req.NotNil(fetched.LastMessage)
	req.Equal("see you at 8", fetched.LastMessage.Body)
	req.Equal(domain.UserID("alice"), fetched.LastMessage.SenderID)
	req.Equal(at, fetched.UpdatedAt)
}

func Test_ForUser_Lists_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t), slog.Default())

	withBob, err := repository.FindOrCreate("alice", "bob")
	req.NoError(err)
	withClara, err := repository.FindOrCreate("alice", "clara")
	req.NoError(err)
	_, err = repository.FindOrCreate("bob", "clara")
	req.NoError(err)

	at := time.Now().UTC()
	req.NoError(repository.UpdateLastMessage(withBob.ID, domain.LastMessage{
		Body: "old", SenderID: "alice", CreatedAt: at,
	}))
	req.NoError(repository.UpdateLastMessage(withClara.ID, domain.LastMessage{
		Body: "new", SenderID: "alice", CreatedAt: at.Add(time.Minute),
	}))

	conversations, err := repository.ForUser("alice")
	req.NoError(err)
	req.Len(conversations, 2)
	req.Equal(withClara.ID, conversations[0].ID)
	req.Equal(withBob.ID, conversations[1].ID)
}
