package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/conductor/internal/model"
)

func newTestStore(t *testing.T, capacity int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", capacity)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestRecord(executionID string, status model.Status) model.HistoryRecord {
	started := time.Now().UTC().Add(-2 * time.Second).Truncate(time.Millisecond)
	finished := started.Add(1500 * time.Millisecond)
	dur := int64(1500)
	code := 0
	return model.HistoryRecord{
		RecordID:        model.NewID(),
		ExecutionID:     executionID,
		ProjectID:       "shop",
		ProjectName:     "SHOP",
		ScenarioID:      "login",
		ScenarioName:    "Login flow",
		File:            "tests/login.spec.ts",
		Tags:            []string{"smoke", "auth"},
		EnvironmentID:   "staging",
		EnvironmentName: "Staging",
		BaseURL:         "https://staging.example.com",
		Status:          status,
		ExitCode:        &code,
		CreatedAt:       started,
		StartedAt:       &started,
		FinishedAt:      &finished,
		DurationMS:      &dur,
	}
}

func TestAppendAndList(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, makeTestRecord("e1", model.StatusSuccess)))
	require.NoError(t, s.Append(ctx, makeTestRecord("e2", model.StatusFailed)))

	got, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Most recent first.
	assert.Equal(t, "e2", got[0].ExecutionID)
	assert.Equal(t, model.StatusFailed, got[0].Status)
	assert.Equal(t, "e1", got[1].ExecutionID)

	r := got[1]
	assert.Equal(t, []string{"smoke", "auth"}, r.Tags)
	assert.Equal(t, "https://staging.example.com", r.BaseURL)
	require.NotNil(t, r.DurationMS)
	assert.Equal(t, int64(1500), *r.DurationMS)
	require.NotNil(t, r.ExitCode)
	assert.Equal(t, 0, *r.ExitCode)
	require.NotNil(t, r.StartedAt)
	require.NotNil(t, r.FinishedAt)
	assert.True(t, r.FinishedAt.After(*r.StartedAt))
}

func TestAppendNilOptionalFields(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	rec := makeTestRecord("e1", model.StatusCancelled)
	rec.StartedAt = nil
	rec.ExitCode = nil
	rec.Tags = nil
	require.NoError(t, s.Append(ctx, rec))

	got, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].StartedAt)
	assert.Nil(t, got[0].ExitCode)
	assert.Empty(t, got[0].Tags)
}

func TestListLimitClamped(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.Append(ctx, makeTestRecord(fmt.Sprintf("e%d", i), model.StatusSuccess)))
	}

	got, err := s.List(ctx, -5)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.List(ctx, 10_000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 0, ClampLimit(-1))
	assert.Equal(t, 0, ClampLimit(0))
	assert.Equal(t, 60, ClampLimit(60))
	assert.Equal(t, MaxListLimit, ClampLimit(501))
}

func TestAppendEvictsOldest(t *testing.T) {
	s := newTestStore(t, 5)
	ctx := context.Background()

	for i := range 6 {
		require.NoError(t, s.Append(ctx, makeTestRecord(fmt.Sprintf("e%d", i), model.StatusSuccess)))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e5", all[0].ExecutionID)
	assert.Equal(t, "e1", all[4].ExecutionID)
}

func TestDefaultCapacityRetainsThousand(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	for i := range DefaultCapacity + 1 {
		require.NoError(t, s.Append(ctx, makeTestRecord(fmt.Sprintf("e%04d", i), model.StatusSuccess)))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, n)

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "e1000", all[0].ExecutionID)
	assert.Equal(t, "e0001", all[len(all)-1].ExecutionID)
}

func TestClear(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, makeTestRecord("e1", model.StatusSuccess)))
	require.NoError(t, s.Clear(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppendInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStoreWithDB(db, 10)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO history").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = s.Append(context.Background(), makeTestRecord("e1", model.StatusSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert history record")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newStoreWithDB(db, 10)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM history").WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err = s.Append(context.Background(), makeTestRecord("e1", model.StatusSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit history record")
	require.NoError(t, mock.ExpectationsWereMet())
}
