// Package scheduler отделяет таймеры и текущее время от кода оповещений,
// чтобы в тестах можно было крутить время вручную.
package scheduler

import (
	"sync"
	"time"
)

// CancelFunc отменяет запланированный вызов. Повторный вызов безопасен.
type CancelFunc func()

// Scheduler даёт текущее время и откладывает вызовы.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) CancelFunc
}

type realScheduler struct{}

// New возвращает планировщик на основе time.AfterFunc.
func New() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	var once sync.Once
	return func() { once.Do(func() { t.Stop() }) }
}
