package controllers

import (
	"context"
	"sync"
	"time"
)

// CommandDeduplicator отсекает повторную отправку команды с тем же request_id,
// пока не истёк её TTL. Панель повторяет команду, если не дождалась ответа.
type CommandDeduplicator struct {
	locks sync.Map
	ttl   time.Duration
	now   func() time.Time
}

func NewCommandDeduplicator(ttl time.Duration) *CommandDeduplicator {
	return &CommandDeduplicator{ttl: ttl, now: time.Now}
}

func (d *CommandDeduplicator) TryAcquire(sessionID, requestID string) bool {
	if requestID == "" {
		return true
	}
	key := sessionID + "_" + requestID
	now := d.now()

	if val, exists := d.locks.Load(key); exists {
		if now.Before(val.(time.Time)) {
			return false
		}
	}

	d.locks.Store(key, now.Add(d.ttl))
	return true
}

// Cleanup периодически удаляет истёкшие ключи, пока жив ctx.
func (d *CommandDeduplicator) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *CommandDeduplicator) sweep() {
	now := d.now()
	d.locks.Range(func(key, value interface{}) bool {
		if now.After(value.(time.Time)) {
			d.locks.Delete(key)
		}
		return true
	})
}
