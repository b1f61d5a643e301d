package utils

import (
	"math/rand"
	"sync"
	"time"
)

// IDGenerator issues receipt ids of the form unixMillis*1000 + jitter,
// strictly increasing within the process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns an id derived from now.
func (g *IDGenerator) Next(now time.Time) int64 {
	id := now.UnixMilli()*1000 + rand.Int63n(1000)
	g.mu.Lock()
	defer g.mu.Unlock()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe raises the floor so ids never collide with ones already stored.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	if id > g.last {
		g.last = id
	}
	g.mu.Unlock()
}
