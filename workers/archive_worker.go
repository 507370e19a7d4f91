// workers/archive_worker.go
package workers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"

	"tournament-factory/models"
	"tournament-factory/tournament"
	"tournament-factory/utils"
)

// ObjectPutter is the part of *s3.Client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveWorker uploads the final view of every completed or aborted
// tournament to object storage, once.
type ArchiveWorker struct {
	DB          *gorm.DB
	Putter      ObjectPutter
	Bucket      string
	DisplayName string
	Interval    time.Duration
	BatchSize   int
	Now         func() time.Time
}

func NewArchiveWorker(db *gorm.DB, putter ObjectPutter, bucket, displayName string, interval time.Duration) *ArchiveWorker {
	return &ArchiveWorker{
		DB:          db,
		Putter:      putter,
		Bucket:      bucket,
		DisplayName: displayName,
		Interval:    interval,
		BatchSize:   50,
		Now:         time.Now,
	}
}

func (w *ArchiveWorker) Start(ctx context.Context) {
	log.Printf("🔁 Starting archive worker (bucket %s, every %s)…", w.Bucket, w.Interval)
	go w.run(ctx)
}

func (w *ArchiveWorker) run(ctx context.Context) {
	if _, err := w.ArchiveOnce(ctx); err != nil {
		log.Printf("⚠️ [Archive] Initial pass failed: %v", err)
	}

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Archive worker stopped.")
			return
		case <-ticker.C:
			n, err := w.ArchiveOnce(ctx)
			if err != nil {
				log.Printf("❌ [Archive] %v", err)
				continue
			}
			if n > 0 {
				log.Printf("✅ [Archive] Uploaded %d settled tournament(s)", n)
			}
		}
	}
}

// ArchiveOnce uploads one batch of unarchived settled snapshots and returns
// how many were archived. A failed upload leaves the row for the next pass.
func (w *ArchiveWorker) ArchiveOnce(ctx context.Context) (int, error) {
	var pending []models.TournamentSnapshot
	err := w.DB.WithContext(ctx).
		Where("state IN ? AND archived_at IS NULL", []string{tournament.Completed.String(), tournament.Aborted.String()}).
		Order("id asc").
		Limit(w.BatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("load settled snapshots: %w", err)
	}

	archived := 0
	var failed []string
	for _, snap := range pending {
		key := utils.ArchiveKey(w.DisplayName, snap.ID)
		_, err := w.Putter.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(w.Bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(snap.View),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			failed = append(failed, fmt.Sprintf("%d: %v", snap.ID, err))
			continue
		}

		now := w.Now().UTC()
		// A later command may have rewritten the row; only mark the version uploaded.
		res := w.DB.WithContext(ctx).Model(&models.TournamentSnapshot{}).
			Where("id = ? AND last_seq = ?", snap.ID, snap.LastSeq).
			Updates(map[string]any{"archived_at": now, "archive_key": key})
		if res.Error != nil {
			failed = append(failed, fmt.Sprintf("%d: %v", snap.ID, res.Error))
			continue
		}
		if res.RowsAffected == 1 {
			archived++
		}
	}

	if len(failed) > 0 {
		return archived, fmt.Errorf("archive failed for tournament(s) %s", strings.Join(failed, "; "))
	}
	return archived, nil
}
