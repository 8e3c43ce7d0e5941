package ingestion

import "sync"

// gates hands out one mutex per lecture so work on different lectures never contends
type gates struct {
	locks sync.Map // lectureID -> *sync.Mutex
}

func (g *gates) lock(lectureID string) func() {
	v, _ := g.locks.LoadOrStore(lectureID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
