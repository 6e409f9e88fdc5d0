package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/domain/entity"
	"github.com/garyjia/crop-guard/internal/domain/event"
)

type fakeKV struct {
	mu        sync.Mutex
	data      map[string]string
	getErr    error
	setErr    error
	deleteErr error
	sets      int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, key)
	return nil
}

func sampleScan(diagnosis string, crop entity.CropType) entity.NewScan {
	return entity.NewScan{
		ImageURI:   "file:///tmp/leaf.jpg",
		Diagnosis:  diagnosis,
		Confidence: 87,
		Date:       time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC),
		CropType:   crop,
		Recommendation: entity.Recommendation{
			Description: "desc",
			Symptoms:    []string{"spots", "yellowing"},
			Treatment:   "spray",
			Prevention:  "rotate",
			Message:     "act early",
		},
	}
}

func TestHistoryStore_AddPrependsWithFreshID(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(newFakeKV(), zap.NewNop())
	h.Load(ctx)

	first, err := h.Add(ctx, sampleScan("leaf spot", entity.CropMaize))
	require.NoError(t, err)
	second, err := h.Add(ctx, sampleScan("mosaic", entity.CropCassava))
	require.NoError(t, err)

	items := h.List()
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, first.ID, items[1].ID)
	assert.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestHistoryStore_AddRetriesDuplicateID(t *testing.T) {
	ctx := context.Background()
	ids := []string{"a", "a", "b"}
	h := NewHistoryStore(newFakeKV(), zap.NewNop(), WithIDGenerator(func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}))

	first, err := h.Add(ctx, sampleScan("healthy", entity.CropMaize))
	require.NoError(t, err)
	second, err := h.Add(ctx, sampleScan("healthy", entity.CropMaize))
	require.NoError(t, err)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestHistoryStore_AddIDGeneratorError(t *testing.T) {
	h := NewHistoryStore(newFakeKV(), zap.NewNop(), WithIDGenerator(func() (string, error) {
		return "", errors.New("entropy exhausted")
	}))

	_, err := h.Add(context.Background(), sampleScan("healthy", entity.CropMaize))
	require.Error(t, err)
	assert.Zero(t, h.Len())
}

func TestHistoryStore_AddDefaultsDate(t *testing.T) {
	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	h := NewHistoryStore(newFakeKV(), zap.NewNop(), WithClock(func() time.Time { return now }))

	scan := sampleScan("healthy", entity.CropTomato)
	scan.Date = time.Time{}
	got, err := h.Add(context.Background(), scan)
	require.NoError(t, err)
	assert.True(t, now.Equal(got.Date))
}

func TestHistoryStore_AddClampsConfidence(t *testing.T) {
	h := NewHistoryStore(newFakeKV(), zap.NewNop())
	scan := sampleScan("healthy", entity.CropTomato)
	scan.Confidence = 140

	got, err := h.Add(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Confidence)
}

func TestHistoryStore_RemoveOne(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(newFakeKV(), zap.NewNop())
	a, _ := h.Add(ctx, sampleScan("leaf spot", entity.CropMaize))
	b, _ := h.Add(ctx, sampleScan("mosaic", entity.CropCassava))

	t.Run("absent id is a no-op", func(t *testing.T) {
		before := h.List()
		assert.False(t, h.RemoveOne(ctx, "does-not-exist"))
		assert.Equal(t, before, h.List())
	})

	t.Run("removes exactly one", func(t *testing.T) {
		assert.True(t, h.RemoveOne(ctx, a.ID))
		items := h.List()
		require.Len(t, items, 1)
		assert.Equal(t, b.ID, items[0].ID)
	})
}

func TestHistoryStore_ClearSurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	h := NewHistoryStore(kv, zap.NewNop())
	_, _ = h.Add(ctx, sampleScan("leaf spot", entity.CropMaize))

	h.Clear(ctx)
	assert.Empty(t, h.List())
	assert.NotContains(t, kv.data, DefaultHistoryKey)

	reloaded := NewHistoryStore(kv, zap.NewNop())
	reloaded.Load(ctx)
	assert.Empty(t, reloaded.List())
}

func TestHistoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	h := NewHistoryStore(kv, zap.NewNop())

	added, err := h.Add(ctx, sampleScan("septoria leaf spot", entity.CropTomato))
	require.NoError(t, err)

	reloaded := NewHistoryStore(kv, zap.NewNop())
	reloaded.Load(ctx)

	items := reloaded.List()
	require.Len(t, items, 1)
	assert.Equal(t, added, items[0])
}

func TestHistoryStore_LoadFallsBackToEmpty(t *testing.T) {
	tests := []struct {
		name string
		kv   func() *fakeKV
	}{
		{name: "missing record", kv: newFakeKV},
		{name: "corrupt record", kv: func() *fakeKV {
			kv := newFakeKV()
			kv.data[DefaultHistoryKey] = "{not json"
			return kv
		}},
		{name: "wrong shape", kv: func() *fakeKV {
			kv := newFakeKV()
			kv.data[DefaultHistoryKey] = `{"id":"x"}`
			return kv
		}},
		{name: "storage failure", kv: func() *fakeKV {
			kv := newFakeKV()
			kv.getErr = errors.New("disk unavailable")
			return kv
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHistoryStore(tt.kv(), zap.NewNop())
			h.Load(context.Background())
			assert.NotNil(t, h.List())
			assert.Empty(t, h.List())
		})
	}
}

func TestHistoryStore_LoadDropsDuplicateIDs(t *testing.T) {
	kv := newFakeKV()
	kv.data[DefaultHistoryKey] = `[{"id":"1","diagnosis":"a"},{"id":"1","diagnosis":"b"},{"id":"","diagnosis":"c"},{"id":"2","diagnosis":"d"}]`
	h := NewHistoryStore(kv, zap.NewNop())
	h.Load(context.Background())

	items := h.List()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Diagnosis)
	assert.Equal(t, "d", items[1].Diagnosis)
}

func TestHistoryStore_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	kv.setErr = errors.New("quota exceeded")
	kv.deleteErr = errors.New("quota exceeded")
	h := NewHistoryStore(kv, zap.NewNop())

	added, err := h.Add(ctx, sampleScan("leaf curl", entity.CropTomato))
	require.NoError(t, err)
	assert.Equal(t, 1, kv.sets)
	assert.Equal(t, 1, h.Len())

	assert.True(t, h.RemoveOne(ctx, added.ID))
	assert.Zero(t, h.Len())

	_, _ = h.Add(ctx, sampleScan("leaf curl", entity.CropTomato))
	h.Clear(ctx)
	assert.Zero(t, h.Len())
}

func TestHistoryStore_Get(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(newFakeKV(), zap.NewNop())
	added, _ := h.Add(ctx, sampleScan("gumosis", entity.CropCashew))

	got, ok := h.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added, got)

	_, ok = h.Get("missing")
	assert.False(t, ok)
}

func TestHistoryStore_Search(t *testing.T) {
	ctx := context.Background()
	h := NewHistoryStore(newFakeKV(), zap.NewNop())
	_, _ = h.Add(ctx, sampleScan("Leaf Spot", entity.CropMaize))
	_, _ = h.Add(ctx, sampleScan("healthy", entity.CropCassava))
	_, _ = h.Add(ctx, sampleScan("leaf curl", entity.CropTomato))

	tests := []struct {
		name   string
		filter HistoryFilter
		want   []string
	}{
		{name: "no filter", filter: HistoryFilter{}, want: []string{"leaf curl", "healthy", "Leaf Spot"}},
		{name: "diagnosis text", filter: HistoryFilter{Query: "LEAF"}, want: []string{"leaf curl", "Leaf Spot"}},
		{name: "crop name text", filter: HistoryFilter{Query: "cassava"}, want: []string{"healthy"}},
		{name: "crop filter", filter: HistoryFilter{CropType: entity.CropMaize}, want: []string{"Leaf Spot"}},
		{name: "both", filter: HistoryFilter{Query: "leaf", CropType: entity.CropTomato}, want: []string{"leaf curl"}},
		{name: "no match", filter: HistoryFilter{Query: "rust"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []string{}
			for _, item := range h.Search(tt.filter) {
				got = append(got, item.Diagnosis)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	h := NewHistoryStore(kv, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Add(ctx, sampleScan(fmt.Sprintf("scan %d", i), entity.CropMaize))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	reloaded := NewHistoryStore(kv, zap.NewNop())
	reloaded.Load(ctx)
	assert.Equal(t, h.List(), reloaded.List())
	assert.Len(t, reloaded.List(), 20)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingPublisher) removedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, evt := range r.events {
		if evt.Type == event.TypeScanRemoved {
			ids = append(ids, evt.ScanID())
		}
	}
	return ids
}

func TestHistoryStore_PublishesRemovals(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	h := NewHistoryStore(newFakeKV(), zap.NewNop(), WithEventPublisher(pub))

	first, err := h.Add(ctx, sampleScan("leaf spot", entity.CropMaize))
	require.NoError(t, err)
	second, err := h.Add(ctx, sampleScan("mosaic", entity.CropCassava))
	require.NoError(t, err)
	third, err := h.Add(ctx, sampleScan("red rust", entity.CropCashew))
	require.NoError(t, err)

	assert.False(t, h.RemoveOne(ctx, "unknown"))
	assert.Empty(t, pub.removedIDs(), "unknown ids publish nothing")

	require.True(t, h.RemoveOne(ctx, second.ID))
	assert.Equal(t, []string{second.ID}, pub.removedIDs())

	h.Clear(ctx)
	assert.Equal(t, []string{second.ID, third.ID, first.ID}, pub.removedIDs())

	h.Clear(ctx)
	assert.Len(t, pub.removedIDs(), 3, "clearing an empty history publishes nothing")
}
