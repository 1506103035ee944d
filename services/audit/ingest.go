package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"vellum/pkg/bus"
	"vellum/pkg/db"
)

const (
	eventsSubject = "vellum.>"
	trailDurable  = "audit-trail"
	subjectPrefix = "vellum."
	unknownActor  = "system"
)

// Ingestor consumes every portal event and records it as an audit row. For
// update events carrying before/after snapshots it stores the field-level
// changes instead of the raw payloads.
type Ingestor struct {
	pool   *pgxpool.Pool
	bus    *bus.Bus
	logger zerolog.Logger

	recorded atomic.Int64

	subMu sync.Mutex
	sub   io.Closer
}

// NewIngestor constructs an Ingestor for the provided dependencies.
func NewIngestor(pool *pgxpool.Pool, b *bus.Bus, logger zerolog.Logger) (*Ingestor, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if b == nil {
		return nil, errors.New("bus is required")
	}

	return &Ingestor{pool: pool, bus: b, logger: logger}, nil
}

// Start subscribes to the portal event stream and processes messages until
// ctx is cancelled.
func (i *Ingestor) Start(ctx context.Context) error {
	if i == nil {
		return errors.New("nil ingestor")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	handler := func(msgCtx context.Context, subject string, data []byte) error {
		return i.handleEvent(msgCtx, subject, data)
	}

	sub, err := i.bus.SubscribeAll(ctx, eventsSubject, trailDurable, handler)
	if err != nil {
		return err
	}

	i.subMu.Lock()
	i.sub = sub
	i.subMu.Unlock()

	return nil
}

// Close stops the underlying subscription if it was created.
func (i *Ingestor) Close() error {
	if i == nil {
		return nil
	}

	i.subMu.Lock()
	defer i.subMu.Unlock()

	if i.sub == nil {
		return nil
	}
	err := i.sub.Close()
	i.sub = nil
	return err
}

// Recorded reports how many events have been written since start.
func (i *Ingestor) Recorded() int64 {
	return i.recorded.Load()
}

func (i *Ingestor) handleEvent(ctx context.Context, subject string, data []byte) error {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		i.logger.Error().Err(err).Str("subject", subject).Msg("discard malformed event")
		return nil
	}

	action := strings.TrimPrefix(subject, subjectPrefix)
	details := payload

	// Update events publish full before/after snapshots; the trail keeps
	// only the fields that changed.
	if before, after, ok := snapshots(payload); ok {
		details = map[string]any{"changes": computeDiff(before, after)}
		for k, v := range payload {
			if k != "before" && k != "after" {
				details[k] = v
			}
		}
	}

	detailsBytes, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, i.pool, `
INSERT INTO audit (actor, action, obj, details)
VALUES ($1, $2, $3, $4::jsonb)
`, actorOf(payload), action, objectOf(payload), detailsBytes)
	if err != nil {
		return err
	}

	i.recorded.Add(1)
	return nil
}

func snapshots(payload map[string]any) (map[string]any, map[string]any, bool) {
	before, okB := payload["before"].(map[string]any)
	after, okA := payload["after"].(map[string]any)
	return before, after, okB && okA
}

// actorOf picks the acting account out of whichever key the publishing
// handler used.
func actorOf(payload map[string]any) string {
	for _, key := range []string{"actor_id", "user_id", "exported_by", "decided_by", "owner_id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return unknownActor
}

func objectOf(payload map[string]any) string {
	for _, key := range []string{"submission_id", "task_id", "user_id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func computeDiff(previous, current map[string]any) map[string]map[string]any {
	if previous == nil {
		previous = map[string]any{}
	}
	if current == nil {
		current = map[string]any{}
	}

	diff := make(map[string]map[string]any)

	for key, prevVal := range previous {
		curVal, ok := current[key]
		if !ok {
			diff[key] = map[string]any{"old": prevVal, "new": nil}
			continue
		}
		if !reflect.DeepEqual(prevVal, curVal) {
			diff[key] = map[string]any{"old": prevVal, "new": curVal}
		}
	}

	for key, curVal := range current {
		if _, seen := previous[key]; seen {
			continue
		}
		diff[key] = map[string]any{"old": nil, "new": curVal}
	}

	return diff
}
