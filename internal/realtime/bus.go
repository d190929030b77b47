// Package realtime implements the RealtimeBus event contract (§4.6): a
// durable, ordered, append-only log of domain events, indexed by opaque
// monotone IDs and readable via (after_id, max_count) polling.
package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/prontocore/kitchen/internal/observability/metrics"
	"go.uber.org/zap"
)

// streamKey is the single Redis stream every event is appended to. Total
// ordering across event types falls directly out of using one stream.
const streamKey = "kitchencore:events"

// BeginningCursor is the §6 sentinel meaning "from the beginning".
const BeginningCursor = "0-0"

// Event is one entry on the bus. ID is the opaque, totally-ordered Redis
// stream ID (e.g. "1699999999999-0"); callers treat it as opaque.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

type Bus struct {
	client *redis.Client
	log    *zap.Logger
}

func New(client *redis.Client, log *zap.Logger) *Bus {
	return &Bus{client: client, log: log.Named("realtime.bus")}
}

// Publish appends an event after the originating transaction has committed
// (§4.6, §5). A publish failure is logged, not escalated - the caller's
// transaction has already committed and must not be undone by a bus error.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) {
	if b == nil || b.client == nil {
		return
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		metrics.Domain().IncRealtimeFailed(eventType)
		return
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{
			"type":    eventType,
			"payload": string(encoded),
		},
	}).Err()
	if err != nil {
		b.log.Error("failed to publish realtime event", zap.String("event_type", eventType), zap.Error(err))
		metrics.Domain().IncRealtimeFailed(eventType)
		return
	}

	metrics.Domain().IncRealtimePublished(eventType)
}

// Read implements the §6 read API: read(after_id, max_count) -> (events,
// last_id). afterID == BeginningCursor reads from the start of the stream.
func (b *Bus) Read(ctx context.Context, afterID string, maxCount int64) ([]Event, string, error) {
	if b == nil || b.client == nil {
		return nil, afterID, nil
	}
	if afterID == "" {
		afterID = BeginningCursor
	}
	if maxCount <= 0 {
		maxCount = 100
	}

	start := "-"
	if afterID != BeginningCursor {
		start = "(" + afterID
	}

	entries, err := b.client.XRangeN(ctx, streamKey, start, "+", maxCount).Result()
	if err != nil {
		return nil, afterID, err
	}

	events := make([]Event, 0, len(entries))
	lastID := afterID
	for _, entry := range entries {
		event := Event{ID: entry.ID}
		if v, ok := entry.Values["type"].(string); ok {
			event.Type = v
		}
		if v, ok := entry.Values["payload"].(string); ok {
			var payload map[string]any
			if err := json.Unmarshal([]byte(v), &payload); err == nil {
				event.Payload = payload
			}
		}
		event.CreatedAt = streamIDToTime(entry.ID)
		events = append(events, event)
		lastID = entry.ID
	}

	return events, lastID, nil
}

func streamIDToTime(id string) time.Time {
	ms, _, found := strings.Cut(id, "-")
	if !found {
		return time.Time{}
	}
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
