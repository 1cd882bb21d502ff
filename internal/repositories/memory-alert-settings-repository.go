package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
)

type MemoryAlertSettingsRepository struct {
	mu        sync.Mutex
	settings  map[constants.Panel]entities.AlertSettings
	publisher changefeed.Publisher
	failNext  error
	reads     int
}

func NewMemoryAlertSettingsRepository(publisher changefeed.Publisher) *MemoryAlertSettingsRepository {
	if publisher == nil {
		publisher = changefeed.NopPublisher{}
	}
	return &MemoryAlertSettingsRepository{
		settings:  make(map[constants.Panel]entities.AlertSettings),
		publisher: publisher,
	}
}

func (r *MemoryAlertSettingsRepository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

// Reads - сколько раз читали список (для проверки кеша).
func (r *MemoryAlertSettingsRepository) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *MemoryAlertSettingsRepository) ListAlertSettings(ctx context.Context) ([]entities.AlertSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	out := make([]entities.AlertSettings, 0, len(r.settings))
	for _, s := range r.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Panel < out[j].Panel })
	return out, nil
}

func (r *MemoryAlertSettingsRepository) UpdateAlertSettings(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error) {
	r.mu.Lock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		r.mu.Unlock()
		return entities.AlertSettings{}, err
	}
	current, ok := r.settings[panel]
	if !ok {
		current = entities.DefaultAlertSettings(panel)
	}
	next := patch.Apply(current)
	next.UpdatedAt = time.Now()
	r.settings[panel] = next
	r.mu.Unlock()

	_ = r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityAlertSettings, Op: changefeed.OpUpdate, ID: panel.String()})
	return next, nil
}
