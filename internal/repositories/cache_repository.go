package repositories

import (
	"context"
	"time"
)

// CacheKey - ключ в кеше настроек. Версия схемы входит в ключ: смена формата JSON
// не поднимает старые записи.
type CacheKey string

const cacheSchemaVersion = "v1"

// AlertSettingsListKey - полный список настроек всех панелей.
func AlertSettingsListKey() CacheKey {
	return CacheKey("alert_settings:" + cacheSchemaVersion + ":all")
}

// CacheRepositoryInterface - кеш с TTL перед хранилищем настроек.
// Get: ok=false без ошибки, если записи нет или она истекла.
type CacheRepositoryInterface interface {
	Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key CacheKey) (value []byte, ok bool, err error)
	Del(ctx context.Context, keys ...CacheKey) error
}
