package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceRunsDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var fired []time.Duration
	f.AfterFunc(20*time.Second, func() { fired = append(fired, f.Now().Sub(start)) })
	f.AfterFunc(10*time.Second, func() {
		fired = append(fired, f.Now().Sub(start))
		f.AfterFunc(5*time.Second, func() { fired = append(fired, f.Now().Sub(start)) })
	})
	cancel := f.AfterFunc(12*time.Second, func() { t.Fatal("отменённый таймер не должен срабатывать") })
	cancel()

	f.Advance(30 * time.Second)

	assert.Equal(t, []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second}, fired)
	assert.Equal(t, start.Add(30*time.Second), f.Now())
	assert.Equal(t, 0, f.Pending())
}
