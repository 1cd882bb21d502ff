package repositories

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
)

// CachedAlertSettingsRepository - кеш поверх хранилища настроек. Ошибки кеша не ломают чтение.
type CachedAlertSettingsRepository struct {
	next   AlertSettingsRepositoryInterface
	cache  CacheRepositoryInterface
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAlertSettingsRepository(next AlertSettingsRepositoryInterface, cache CacheRepositoryInterface, ttl time.Duration, logger *zap.Logger) AlertSettingsRepositoryInterface {
	return &CachedAlertSettingsRepository{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (r *CachedAlertSettingsRepository) ListAlertSettings(ctx context.Context) ([]entities.AlertSettings, error) {
	raw, ok, err := r.cache.Get(ctx, AlertSettingsListKey())
	switch {
	case err != nil:
		r.logger.Warn("кеш настроек недоступен, читаю из базы", zap.Error(err))
	case ok:
		var cached []entities.AlertSettings
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		r.logger.Warn("битая запись кеша настроек, читаю из базы")
	}

	settings, err := r.next.ListAlertSettings(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(settings); err == nil {
		if err := r.cache.Set(ctx, AlertSettingsListKey(), data, r.ttl); err != nil {
			r.logger.Warn("не удалось записать настройки в кеш", zap.Error(err))
		}
	}
	return settings, nil
}

func (r *CachedAlertSettingsRepository) UpdateAlertSettings(ctx context.Context, panel constants.Panel, patch entities.AlertSettingsPatch) (entities.AlertSettings, error) {
	saved, err := r.next.UpdateAlertSettings(ctx, panel, patch)
	if err != nil {
		return entities.AlertSettings{}, err
	}
	if err := r.cache.Del(ctx, AlertSettingsListKey()); err != nil {
		r.logger.Warn("не удалось сбросить кеш настроек", zap.Error(err))
	}
	return saved, nil
}
