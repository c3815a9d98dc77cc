package memory

import (
	"sync"
	"time"
)

// keySource issues millisecond-epoch ordering keys that never decrease within
// a process, so numeric key order equals chronological order. Two turns in the
// same millisecond get adjacent keys, keeping their relative order stable.
type keySource struct {
	mu   sync.Mutex
	last int64
}

func (k *keySource) next() int64 {
	now := time.Now().UnixMilli()
	k.mu.Lock()
	defer k.mu.Unlock()
	if now <= k.last {
		now = k.last + 1
	}
	k.last = now
	return now
}
