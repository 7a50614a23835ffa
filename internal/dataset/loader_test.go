package dataset

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

const sampleDataset = `{
	"videos": [
		{
			"id": "v01",
			"creator_id": "c01",
			"video_created_at": "2025-11-20T12:00:00Z",
			"views_count": 100,
			"likes_count": 10,
			"comments_count": 2,
			"reports_count": 0,
			"created_at": "2025-11-20T12:00:00Z",
			"updated_at": "2025-11-28T00:00:00Z",
			"snapshots": [
				{
					"id": "s01",
					"video_id": "v01",
					"views_count": 50,
					"likes_count": 5,
					"comments_count": 1,
					"reports_count": 0,
					"delta_views_count": 50,
					"delta_likes_count": 5,
					"delta_comments_count": 1,
					"delta_reports_count": 0,
					"created_at": "2025-11-21T00:00:00Z",
					"updated_at": "2025-11-21T00:00:00Z"
				},
				{
					"id": "s02",
					"video_id": "v01",
					"views_count": 100,
					"likes_count": 10,
					"comments_count": 2,
					"reports_count": 0,
					"delta_views_count": 50,
					"delta_likes_count": 5,
					"delta_comments_count": 1,
					"delta_reports_count": 0,
					"created_at": "2025-11-22T00:00:00Z",
					"updated_at": "2025-11-22T00:00:00Z"
				}
			]
		}
	]
}`

func TestLoadUpsertsVideosAndSnapshots(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO videos")
	mock.ExpectExec("INSERT INTO videos").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO video_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader(sampleDataset), Options{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTruncateRunsInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("TRUNCATE video_snapshots, videos").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO videos")
	mock.ExpectExec("INSERT INTO videos").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO video_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader(sampleDataset), Options{Truncate: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSplitsSnapshotBatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO videos")
	mock.ExpectExec("INSERT INTO videos").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// BatchSize 1 splits the two snapshots into two statements.
	mock.ExpectExec("INSERT INTO video_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO video_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader(sampleDataset), Options{BatchSize: 1})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMalformedJSON(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader("{not json"), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode dataset JSON")
}

func TestLoadMissingVideosKey(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader(`{"items": []}`), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected object with key 'videos'")
}

func TestLoadRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO videos")
	mock.ExpectExec("INSERT INTO videos").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	loader := NewLoader(db, slog.Default())
	err = loader.Load(context.Background(), strings.NewReader(sampleDataset), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to upsert video v01")
	require.NoError(t, mock.ExpectationsWereMet())
}
