package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"amora/domain"
)

func openTestIndex(t *testing.T) *bluge.Writer {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return writer
}

func Test_Search_Finds_Indexed_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewSearchRepository(openTestIndex(t), slog.Default())

	at := time.Now().UTC()
	hit := storedMessage("c1", "alice", "bob", "dinner at the harbour tonight", at)
	req.NoError(repository.Index(hit))
	req.NoError(repository.Index(storedMessage("c1", "bob", "alice", "sounds great", at.Add(time.Second))))

	ids, err := repository.Search(context.Background(), "c1", "harbour", 10)
	req.NoError(err)
	req.Equal([]domain.MessageID{hit.ID}, ids)
}

func Test_Search_Is_Scoped_To_One_Conversation(t *testing.T) {
	req := require.New(t)
	repository := NewSearchRepository(openTestIndex(t), slog.Default())

	at := time.Now().UTC()
	inC1 := storedMessage("c1", "alice", "bob", "coffee tomorrow", at)
	req.NoError(repository.Index(inC1))
	req.NoError(repository.Index(storedMessage("c2", "alice", "clara", "coffee tomorrow", at)))

	ids, err := repository.Search(context.Background(), "c1", "coffee", 10)
	req.NoError(err)
	req.Equal([]domain.MessageID{inC1.ID}, ids)
}

func Test_Search_No_Match_Returns_Empty(t *testing.T) {
	req := require.New(t)
	repository := NewSearchRepository(openTestIndex(t), slog.Default())

	req.NoError(repository.Index(storedMessage("c1", "alice", "bob", "hello there", time.Now().UTC())))

	ids, err := repository.Search(context.Background(), "c1", "unrelated", 10)
	req.NoError(err)
	req.Empty(ids)
}
