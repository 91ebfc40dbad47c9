package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/fsaudit/internal/errors"
)

// newMockStore returns a store over sqlmock for engine-failure paths.
func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStoreFromDB(db, ""), mock
}

func TestMockStore_InsertFileBatch_EngineErrorRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	engineErr := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO files`)
	mock.ExpectExec(`INSERT INTO files`).
		WithArgs(int64(3), "/r/a.txt", "a.txt", "/", "txt",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(engineErr)
	mock.ExpectRollback()

	err := s.InsertFileBatch(context.Background(), 3, []FileRecord{
		{Path: "/r/a.txt", FileName: "a.txt", Subfolder: "/", Extension: "txt"},
		{Path: "/r/b.txt", FileName: "b.txt", Subfolder: "/", Extension: "txt"},
	})

	// Then: surfaced once as a store error, original cause preserved
	require.Error(t, err)
	assert.True(t, errors.Is(err, fserrors.ErrStore))
	assert.ErrorIs(t, err, engineErr)
	assert.Equal(t, fserrors.ErrCodeStoreFailed, fserrors.GetCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockStore_PrepareRun_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	root := t.TempDir()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT run_id FROM scan_runs WHERE root_path = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))
	mock.ExpectExec(`INSERT INTO scan_runs`).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	id, err := s.PrepareRun(context.Background(), root)

	assert.Zero(t, id)
	assert.True(t, errors.Is(err, fserrors.ErrStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockStore_GetRun_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM scan_runs WHERE run_id = \?`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	run, err := s.GetRun(context.Background(), 11)

	assert.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMockStore_QueryFailuresAreStoreErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		call   func(s *SQLiteStore) error
	}{
		{
			name: "list runs",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM scan_runs`).WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				_, err := s.ListRuns(ctx)
				return err
			},
		},
		{
			name: "fetch page count",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM files`).WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				_, err := s.FetchPage(ctx, PageQuery{RunID: 1})
				return err
			},
		},
		{
			name: "fetch extensions",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT DISTINCT`).WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				_, err := s.FetchExtensions(ctx, 1)
				return err
			},
		},
		{
			name: "mark started",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE scan_runs SET started_at`).WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				return s.MarkRunStarted(ctx, 1)
			},
		},
		{
			name: "update progress",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE scan_runs SET total_files`).
					WithArgs(10, 1, int64(1)).
					WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				return s.UpdateRunProgress(ctx, 1, 10, 1)
			},
		},
		{
			name: "finalize",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE scan_runs`).WillReturnError(errors.New("boom"))
			},
			call: func(s *SQLiteStore) error {
				return s.FinalizeRun(ctx, 1, Finalization{Status: RunStatusCompleted})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.expect(mock)

			err := tt.call(s)

			require.Error(t, err)
			assert.True(t, errors.Is(err, fserrors.ErrStore))
			assert.Contains(t, err.Error(), "boom")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
