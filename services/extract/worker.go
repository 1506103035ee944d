package extract

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vellum/pkg/bus"
	gos3 "vellum/pkg/s3"
)

const (
	requestSubject  = "vellum.extraction.requested"
	finishedSubject = "vellum.extraction.finished"
	workerDurable   = "extract-worker"
	reportSuffix    = ".extraction.json"

	stateRunning   = "running"
	stateSucceeded = "succeeded"
	stateFailed    = "failed"
)

var tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vellum_extract_tasks_total",
	Help: "Extraction tasks processed, by terminal state.",
}, []string{"state"})

type taskEvent struct {
	TaskID       uuid.UUID  `json:"task_id"`
	SubmissionID *uuid.UUID `json:"submission_id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	StorageKey   string     `json:"storage_key"`
}

// Worker consumes extraction requests, pulls manuscripts out of object
// storage, and records recovered metadata on the task row.
type Worker struct {
	orm    *gorm.DB
	s3     *gos3.Client
	bus    *bus.Bus
	bucket string
	logger zerolog.Logger

	subMu sync.Mutex
	sub   io.Closer
}

// NewWorker constructs a Worker for the provided dependencies.
func NewWorker(orm *gorm.DB, s3 *gos3.Client, b *bus.Bus, bucket string, logger zerolog.Logger) (*Worker, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if s3 == nil {
		return nil, errors.New("s3 client is required")
	}
	if b == nil {
		return nil, errors.New("bus is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	return &Worker{orm: orm, s3: s3, bus: b, bucket: bucket, logger: logger}, nil
}

// Start subscribes to extraction requests and processes them until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("nil worker")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	handler := func(msgCtx context.Context, data []byte) error {
		return w.handleTask(msgCtx, data)
	}

	sub, err := w.bus.Subscribe(ctx, requestSubject, workerDurable, handler)
	if err != nil {
		return err
	}

	w.subMu.Lock()
	w.sub = sub
	w.subMu.Unlock()

	return nil
}

// Close stops the underlying subscription if it was created.
func (w *Worker) Close() error {
	if w == nil {
		return nil
	}

	w.subMu.Lock()
	defer w.subMu.Unlock()

	if w.sub == nil {
		return nil
	}
	err := w.sub.Close()
	w.sub = nil
	return err
}

// handleTask processes one request. Infrastructure errors are returned so
// the message redelivers; manuscript problems finish the task as failed and
// ack the message.
func (w *Worker) handleTask(ctx context.Context, data []byte) error {
	var evt taskEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		w.logger.Error().Err(err).Msg("discard malformed extraction event")
		return nil
	}
	if evt.TaskID == uuid.Nil {
		w.logger.Error().Msg("discard extraction event without task_id")
		return nil
	}

	var task taskModel
	err := w.orm.WithContext(ctx).First(&task, "id = ?", evt.TaskID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		w.logger.Error().Str("task_id", evt.TaskID.String()).Msg("discard event for unknown task")
		return nil
	case err != nil:
		return err
	}
	if task.State != "pending" {
		return nil
	}

	now := time.Now().UTC()
	if err := w.orm.WithContext(ctx).Model(&task).Updates(map[string]any{
		"state":      stateRunning,
		"started_at": now,
	}).Error; err != nil {
		return err
	}

	meta, taskErr := w.extract(ctx, task.StorageKey)
	if taskErr != nil {
		return w.finish(ctx, task, nil, taskErr)
	}

	if err := w.writeReport(ctx, task.StorageKey, meta.report()); err != nil {
		return err
	}
	return w.finish(ctx, task, &meta, nil)
}

func (w *Worker) extract(ctx context.Context, storageKey string) (Metadata, error) {
	if !strings.HasSuffix(strings.ToLower(storageKey), ".docx") {
		return Metadata{}, fmt.Errorf("%s: unsupported format %q: only docx manuscripts are analysed", ErrCodeInvalidFormat, storageKey)
	}

	body, _, err := w.s3.GetObject(ctx, w.bucket, storageKey)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch %s: %w", storageKey, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Metadata{}, fmt.Errorf("read %s: %w", storageKey, err)
	}

	doc, err := ParseDocx(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", ErrCodeInvalidFormat, err)
	}
	return Analyze(doc), nil
}

func (m Metadata) report() map[string]any {
	return map[string]any{
		"title":    m.Title,
		"abstract": m.Abstract,
		"keywords": m.Keywords,
		"authors":  m.Authors,
		"warnings": m.Warnings,
	}
}

func (w *Worker) writeReport(ctx context.Context, storageKey string, report map[string]any) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	sum := sha256.Sum256(payload)
	key := storageKey + reportSuffix
	if err := w.s3.PutObject(ctx, w.bucket, key, bytes.NewReader(payload), int64(len(payload)), hex.EncodeToString(sum[:])); err != nil {
		return fmt.Errorf("store report %s: %w", key, err)
	}
	return nil
}

func (w *Worker) finish(ctx context.Context, task taskModel, meta *Metadata, taskErr error) error {
	now := time.Now().UTC()
	updates := map[string]any{"finished_at": now}
	state := stateSucceeded
	if taskErr != nil {
		state = stateFailed
		updates["error"] = taskErr.Error()
	} else {
		updates["result"] = datatypes.JSONMap(meta.report())
	}
	updates["state"] = state

	if err := w.orm.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		return err
	}

	tasksProcessed.WithLabelValues(state).Inc()

	// The task row is terminal either way; an apply failure is logged
	// rather than redelivered.
	if meta != nil && task.SubmissionID != nil {
		if err := w.applyToDraft(ctx, *task.SubmissionID, *meta); err != nil {
			w.logger.Error().Err(err).
				Str("task_id", task.ID.String()).
				Str("submission_id", task.SubmissionID.String()).
				Msg("apply extracted metadata to draft")
		}
	}

	event := map[string]any{
		"task_id":     task.ID,
		"owner_id":    task.OwnerID,
		"storage_key": task.StorageKey,
		"state":       state,
	}
	if task.SubmissionID != nil {
		event["submission_id"] = task.SubmissionID
	}
	if taskErr != nil {
		event["error"] = taskErr.Error()
	}
	if err := w.bus.Publish(ctx, finishedSubject, event); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID.String()).Msg("publish finished event")
	}

	w.logger.Info().
		Str("task_id", task.ID.String()).
		Str("state", state).
		Str("storage_key", task.StorageKey).
		Msg("extraction finished")
	return nil
}
