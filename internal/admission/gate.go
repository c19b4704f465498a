// Package admission caps the number of concurrent chat sessions across all
// listeners.
package admission

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate hands out session slots up to a fixed limit.
type Gate struct {
	sem    *semaphore.Weighted
	limit  int64
	active atomic.Int64
}

// New builds a gate allowing at most limit concurrent sessions.
// A non-positive limit admits a single session.
func New(limit int) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: int64(limit),
	}
}

// TryEnter claims a slot without blocking. It returns false when the server is full.
func (g *Gate) TryEnter() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.active.Add(1)
	return true
}

// Leave releases a slot claimed by TryEnter.
func (g *Gate) Leave() {
	g.active.Add(-1)
	g.sem.Release(1)
}

// Active reports how many slots are in use.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Limit reports the configured cap.
func (g *Gate) Limit() int {
	return int(g.limit)
}
