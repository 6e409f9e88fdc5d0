package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/event"
)

// DefaultHistoryKey is the storage key the scan history is persisted under
const DefaultHistoryKey = "scanHistory"

// HistoryFilter narrows a history search. Zero values match everything.
type HistoryFilter struct {
	Query    string
	CropType entity.CropType
}

// HistoryStore is the ordered, most-recent-first list of past scans.
// Mutations persist the whole sequence; persistence failures are logged and
// never undo the in-memory change.
type HistoryStore struct {
	mu     sync.RWMutex
	items  []entity.ScanResult
	kv     port.KeyValueStore
	key    string
	newID  func() (string, error)
	now    func() time.Time
	events port.EventPublisher
	logger *zap.Logger
}

// HistoryOption customises a HistoryStore
type HistoryOption func(*HistoryStore)

// WithHistoryKey overrides the storage key
func WithHistoryKey(key string) HistoryOption {
	return func(h *HistoryStore) {
		if key != "" {
			h.key = key
		}
	}
}

// WithIDGenerator replaces the UUIDv7 id source
func WithIDGenerator(fn func() (string, error)) HistoryOption {
	return func(h *HistoryStore) { h.newID = fn }
}

// WithClock replaces time.Now for scans that carry no date
func WithClock(fn func() time.Time) HistoryOption {
	return func(h *HistoryStore) { h.now = fn }
}

// WithEventPublisher publishes a scan.removed event for every scan that
// RemoveOne or Clear drops
func WithEventPublisher(p port.EventPublisher) HistoryOption {
	return func(h *HistoryStore) { h.events = p }
}

// NewHistoryStore creates an empty store. Call Load to read persisted history.
func NewHistoryStore(kv port.KeyValueStore, logger *zap.Logger, opts ...HistoryOption) *HistoryStore {
	h := &HistoryStore{
		kv:     kv,
		key:    DefaultHistoryKey,
		newID:  newScanID,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func newScanID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Load replaces the in-memory history with the persisted record.
// A missing, unreadable or corrupt record yields an empty history.
func (h *HistoryStore) Load(ctx context.Context) {
	items := h.read(ctx)

	h.mu.Lock()
	h.items = items
	h.mu.Unlock()

	h.logger.Info("Scan history loaded", zap.Int("count", len(items)))
}

func (h *HistoryStore) read(ctx context.Context) []entity.ScanResult {
	raw, found, err := h.kv.Get(ctx, h.key)
	if err != nil {
		h.logger.Error("Failed to load scan history", zap.Error(fmt.Errorf("%w: %w", port.ErrStorage, err)))
		return []entity.ScanResult{}
	}
	if !found || strings.TrimSpace(raw) == "" {
		return []entity.ScanResult{}
	}

	var items []entity.ScanResult
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		h.logger.Warn("Discarding corrupt scan history", zap.Error(err))
		return []entity.ScanResult{}
	}

	// Keep the first occurrence of any duplicated id.
	seen := make(map[string]struct{}, len(items))
	clean := items[:0]
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		clean = append(clean, item)
	}
	return clean
}

// List returns a snapshot of the history, most recent first
func (h *HistoryStore) List() []entity.ScanResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]entity.ScanResult{}, h.items...)
}

// Len returns the number of stored scans
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Get returns a stored scan by id
func (h *HistoryStore) Get(id string) (entity.ScanResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, item := range h.items {
		if item.ID == id {
			return item, true
		}
	}
	return entity.ScanResult{}, false
}

// Add assigns a fresh id, prepends the scan and persists the history
func (h *HistoryStore) Add(ctx context.Context, scan entity.NewScan) (entity.ScanResult, error) {
	if scan.Date.IsZero() {
		scan.Date = h.now()
	}
	scan.Date = scan.Date.UTC().Truncate(time.Millisecond)

	h.mu.Lock()
	id, err := h.uniqueID()
	if err != nil {
		h.mu.Unlock()
		return entity.ScanResult{}, fmt.Errorf("generate scan id: %w", err)
	}
	result := scan.WithID(id)
	h.items = append([]entity.ScanResult{result}, h.items...)
	h.persistLocked(ctx)
	h.mu.Unlock()

	h.logger.Info("Scan added to history",
		zap.String("id", result.ID),
		zap.String("diagnosis", result.Diagnosis),
		zap.String("crop_type", result.CropType.String()),
	)
	return result, nil
}

// uniqueID must be called with the write lock held
func (h *HistoryStore) uniqueID() (string, error) {
	const maxAttempts = 5
	for i := 0; i < maxAttempts; i++ {
		id, err := h.newID()
		if err != nil {
			return "", err
		}
		if !h.containsLocked(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("no unique id after %d attempts", maxAttempts)
}

func (h *HistoryStore) containsLocked(id string) bool {
	for _, item := range h.items {
		if item.ID == id {
			return true
		}
	}
	return false
}

// RemoveOne deletes the scan with the given id. Unknown ids are a no-op.
// It reports whether an entry was removed.
func (h *HistoryStore) RemoveOne(ctx context.Context, id string) bool {
	h.mu.Lock()
	idx := -1
	for i, item := range h.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	items := make([]entity.ScanResult, 0, len(h.items)-1)
	items = append(items, h.items[:idx]...)
	items = append(items, h.items[idx+1:]...)
	removed := h.items[idx]
	h.items = items
	h.persistLocked(ctx)
	h.mu.Unlock()

	h.logger.Info("Scan removed from history", zap.String("id", id))
	h.publishRemoved(ctx, removed)
	return true
}

// Clear empties the history and deletes the persisted record
func (h *HistoryStore) Clear(ctx context.Context) {
	h.mu.Lock()
	removed := h.items
	h.items = []entity.ScanResult{}
	err := h.kv.Delete(ctx, h.key)
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("Failed to clear persisted scan history",
			zap.Error(fmt.Errorf("%w: %w", port.ErrStorage, err)))
	} else {
		h.logger.Info("Scan history cleared", zap.Int("count", len(removed)))
	}
	h.publishRemoved(ctx, removed...)
}

func (h *HistoryStore) publishRemoved(ctx context.Context, scans ...entity.ScanResult) {
	if h.events == nil {
		return
	}
	for _, scan := range scans {
		h.events.Publish(ctx, event.NewEvent(event.TypeScanRemoved, scan))
	}
}

// Search returns the scans matching the filter, most recent first.
// The query matches diagnosis or crop name case-insensitively.
func (h *HistoryStore) Search(filter HistoryFilter) []entity.ScanResult {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	h.mu.RLock()
	defer h.mu.RUnlock()

	matches := []entity.ScanResult{}
	for _, item := range h.items {
		if filter.CropType != "" && item.CropType != filter.CropType {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(item.Diagnosis), query) &&
			!strings.Contains(strings.ToLower(item.CropType.String()), query) {
			continue
		}
		matches = append(matches, item)
	}
	return matches
}

// persistLocked writes the full sequence; the write lock keeps saves ordered
func (h *HistoryStore) persistLocked(ctx context.Context) {
	data, err := json.Marshal(h.items)
	if err != nil {
		h.logger.Error("Failed to encode scan history", zap.Error(err))
		return
	}
	if err := h.kv.Set(ctx, h.key, string(data)); err != nil {
		h.logger.Error("Failed to persist scan history",
			zap.Error(fmt.Errorf("%w: %w", port.ErrStorage, err)),
			zap.Int("count", len(h.items)),
		)
	}
}
