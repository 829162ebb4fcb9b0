package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{lru: c}
}

// seen reports whether v is not newer than the last applied value for key.
func (d *versionDedupe) seen(key string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return ok && v <= last
}

func (d *versionDedupe) record(key string, v uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && v <= last {
		return
	}
	d.lru.Add(key, v)
}
