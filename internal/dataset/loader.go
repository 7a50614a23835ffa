// Package dataset loads the videos.json dataset into Postgres. The payload
// is an object with a single top-level "videos" list; each video carries its
// final counters and an embedded "snapshots" list.
package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Video is one dataset row for the videos table, with its snapshot stream.
type Video struct {
	ID             string     `json:"id"`
	CreatorID      string     `json:"creator_id"`
	VideoCreatedAt time.Time  `json:"video_created_at"`
	ViewsCount     int64      `json:"views_count"`
	LikesCount     int64      `json:"likes_count"`
	CommentsCount  int64      `json:"comments_count"`
	ReportsCount   int64      `json:"reports_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Snapshots      []Snapshot `json:"snapshots"`
}

// Snapshot is one dataset row for the video_snapshots table.
type Snapshot struct {
	ID                 string    `json:"id"`
	VideoID            string    `json:"video_id"`
	ViewsCount         int64     `json:"views_count"`
	LikesCount         int64     `json:"likes_count"`
	CommentsCount      int64     `json:"comments_count"`
	ReportsCount       int64     `json:"reports_count"`
	DeltaViewsCount    int64     `json:"delta_views_count"`
	DeltaLikesCount    int64     `json:"delta_likes_count"`
	DeltaCommentsCount int64     `json:"delta_comments_count"`
	DeltaReportsCount  int64     `json:"delta_reports_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type payload struct {
	Videos []Video `json:"videos"`
}

// Options control one load run.
type Options struct {
	// Truncate empties both tables inside the load transaction first.
	Truncate  bool
	BatchSize int
}

// Loader writes dataset payloads into the videos tables.
type Loader struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLoader wraps a connection pool for dataset loading.
func NewLoader(db *sql.DB, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, logger: logger}
}

// LoadFile reads the dataset from a local JSON file.
func (l *Loader) LoadFile(ctx context.Context, path string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()
	return l.Load(ctx, f, opts)
}

// LoadURL downloads the dataset from a URL.
func (l *Loader) LoadURL(ctx context.Context, url string, opts Options) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build dataset request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dataset download returned status %d", resp.StatusCode)
	}
	return l.Load(ctx, resp.Body, opts)
}

// Load decodes the payload and upserts all rows in one transaction, so a
// failed run leaves the tables untouched.
func (l *Loader) Load(ctx context.Context, r io.Reader, opts Options) error {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	var data payload
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&data); err != nil {
		return fmt.Errorf("failed to decode dataset JSON: %w", err)
	}
	if data.Videos == nil {
		return fmt.Errorf("unexpected dataset format: expected object with key 'videos' containing a list")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load transaction: %w", err)
	}
	defer tx.Rollback()

	if opts.Truncate {
		if _, err := tx.ExecContext(ctx, "TRUNCATE video_snapshots, videos"); err != nil {
			return fmt.Errorf("failed to truncate tables: %w", err)
		}
	}

	if err := l.upsertVideos(ctx, tx, data.Videos); err != nil {
		return err
	}

	snapshotCount, err := l.upsertSnapshots(ctx, tx, data.Videos, opts.BatchSize)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit load transaction: %w", err)
	}

	l.logger.Info("dataset loaded",
		"videos", len(data.Videos),
		"snapshots", snapshotCount)
	return nil
}

const upsertVideoQuery = `
	INSERT INTO videos (id, creator_id, video_created_at,
	                    views_count, likes_count, comments_count, reports_count,
	                    created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
	    creator_id = EXCLUDED.creator_id,
	    video_created_at = EXCLUDED.video_created_at,
	    views_count = EXCLUDED.views_count,
	    likes_count = EXCLUDED.likes_count,
	    comments_count = EXCLUDED.comments_count,
	    reports_count = EXCLUDED.reports_count,
	    created_at = EXCLUDED.created_at,
	    updated_at = EXCLUDED.updated_at
`

func (l *Loader) upsertVideos(ctx context.Context, tx *sql.Tx, videos []Video) error {
	stmt, err := tx.PrepareContext(ctx, upsertVideoQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare video upsert: %w", err)
	}
	defer stmt.Close()

	for _, video := range videos {
		_, err := stmt.ExecContext(ctx,
			video.ID,
			video.CreatorID,
			video.VideoCreatedAt,
			video.ViewsCount,
			video.LikesCount,
			video.CommentsCount,
			video.ReportsCount,
			video.CreatedAt,
			video.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", video.ID, err)
		}
	}
	return nil
}

const snapshotColumnCount = 12

const upsertSnapshotConflict = `
	ON CONFLICT (id) DO UPDATE SET
	    video_id = EXCLUDED.video_id,
	    views_count = EXCLUDED.views_count,
	    likes_count = EXCLUDED.likes_count,
	    comments_count = EXCLUDED.comments_count,
	    reports_count = EXCLUDED.reports_count,
	    delta_views_count = EXCLUDED.delta_views_count,
	    delta_likes_count = EXCLUDED.delta_likes_count,
	    delta_comments_count = EXCLUDED.delta_comments_count,
	    delta_reports_count = EXCLUDED.delta_reports_count,
	    created_at = EXCLUDED.created_at,
	    updated_at = EXCLUDED.updated_at
`

func (l *Loader) upsertSnapshots(ctx context.Context, tx *sql.Tx, videos []Video, batchSize int) (int, error) {
	var batch []Snapshot
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := execSnapshotBatch(ctx, tx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, video := range videos {
		for _, snapshot := range video.Snapshots {
			batch = append(batch, snapshot)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return total, nil
}

// execSnapshotBatch inserts one batch with a multi-row VALUES statement.
func execSnapshotBatch(ctx context.Context, tx *sql.Tx, batch []Snapshot) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO video_snapshots (id, video_id,
	    views_count, likes_count, comments_count, reports_count,
	    delta_views_count, delta_likes_count, delta_comments_count, delta_reports_count,
	    created_at, updated_at) VALUES `)

	args := make([]any, 0, len(batch)*snapshotColumnCount)
	for i, snapshot := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for col := 0; col < snapshotColumnCount; col++ {
			if col > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*snapshotColumnCount+col+1)
		}
		sb.WriteString(")")

		args = append(args,
			snapshot.ID,
			snapshot.VideoID,
			snapshot.ViewsCount,
			snapshot.LikesCount,
			snapshot.CommentsCount,
			snapshot.ReportsCount,
			snapshot.DeltaViewsCount,
			snapshot.DeltaLikesCount,
			snapshot.DeltaCommentsCount,
			snapshot.DeltaReportsCount,
			snapshot.CreatedAt,
			snapshot.UpdatedAt,
		)
	}
	sb.WriteString(upsertSnapshotConflict)

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to upsert snapshot batch: %w", err)
	}
	return nil
}
