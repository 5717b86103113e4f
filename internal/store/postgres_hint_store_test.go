package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresStore(t *testing.T) (*PostgresHintStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return NewPostgresHintStore(mock), mock
}

func TestPostgresHintStore_EnsureSchema(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS hints")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, s.EnsureSchema(context.Background()))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS hints")).
		WillReturnError(errors.New("permission denied"))
	err := s.EnsureSchema(context.Background())
	assert.ErrorContains(t, err, "failed to create hints table")
}

func TestPostgresHintStore_StoreHint(t *testing.T) {
	s, mock := newTestPostgresStore(t)
	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hint := newHint("http://node-b", "k", createdAt)
	hint.Timestamp = 42

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hints")).
		WithArgs(hint.HintID, hint.TargetNodeID, hint.Key, hint.Value, int64(42), createdAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.StoreHint(context.Background(), hint))

	dbErr := errors.New("duplicate key")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO hints")).
		WithArgs(hint.HintID, hint.TargetNodeID, hint.Key, hint.Value, int64(42), createdAt).
		WillReturnError(dbErr)
	err := s.StoreHint(context.Background(), hint)
	assert.ErrorIs(t, err, dbErr)
	assert.ErrorContains(t, err, "failed to store hint")
}

func TestPostgresHintStore_GetHintsForNode(t *testing.T) {
	s, mock := newTestPostgresStore(t)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	rows := pgxmock.NewRows([]string{"hint_id", "target_node_id", "key", "value", "write_ts", "created_at"}).
		AddRow("h1", "http://node-b", []byte("a"), []byte("1"), int64(10), first).
		AddRow("h2", "http://node-b", []byte("b"), []byte("2"), int64(11), second)

	// A non-positive limit falls back to the default page size
	mock.ExpectQuery(regexp.QuoteMeta("FROM hints")).
		WithArgs("http://node-b", 1000).
		WillReturnRows(rows)

	hints, err := s.GetHintsForNode(context.Background(), "http://node-b", 0)
	require.NoError(t, err)
	require.Len(t, hints, 2)
	assert.Equal(t, "h1", hints[0].HintID)
	assert.Equal(t, []byte("a"), hints[0].Key)
	assert.Equal(t, int64(10), hints[0].Timestamp)
	assert.Equal(t, first, hints[0].CreatedAt)
	assert.Equal(t, []byte("2"), hints[1].Value)

	mock.ExpectQuery(regexp.QuoteMeta("FROM hints")).
		WithArgs("http://node-c", 5).
		WillReturnError(errors.New("connection reset"))
	_, err = s.GetHintsForNode(context.Background(), "http://node-c", 5)
	assert.ErrorContains(t, err, "failed to get hints")
}

func TestPostgresHintStore_GetHintCount(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hints")).
		WithArgs("http://node-b").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := s.GetHintCount(context.Background(), "http://node-b")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestPostgresHintStore_CleanupOldHints(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM hints WHERE created_at < $1")).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := s.CleanupOldHints(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
}

func TestPostgresHintStore_Ping(t *testing.T) {
	s, mock := newTestPostgresStore(t)

	mock.ExpectPing()
	assert.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("no route to host"))
	assert.Error(t, s.Ping(context.Background()))
}
