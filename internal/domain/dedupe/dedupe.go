// Package dedupe tracks sheet fingerprints so identical content is not
// recomputed twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen sheet fingerprints.
type Deduper interface {
	// SeenAndRecord reports whether fp was already recorded, recording it
	// if not. The check and the insert happen under one lock.
	SeenAndRecord(ctx context.Context, fp string) bool

	// Unrecord forgets fp so the same content can be submitted again, e.g.
	// after the recompute job for it was rejected by the queue.
	Unrecord(ctx context.Context, fp string)

	// Reset forgets every fingerprint.
	Reset(ctx context.Context)

	Size() int64
}

// entry is a node in the insertion-ordered list, oldest at the tail.
type entry struct {
	fp         string
	prev, next *entry
}

// fingerprintSet is a bounded set; when full the oldest fingerprint is
// evicted. maxSize <= 0 disables the bound.
type fingerprintSet struct {
	mu         sync.Mutex
	seen       map[string]*entry
	head, tail *entry
	maxSize    int
	size       atomic.Int64
	pool       sync.Pool
}

// NewFingerprintSet creates an in-memory deduper.
func NewFingerprintSet(opts ...Option) Deduper {
	d := &fingerprintSet{maxSize: 64}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*entry)
	d.pool.New = func() any { return &entry{} }
	return d
}

func (d *fingerprintSet) SeenAndRecord(_ context.Context, fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.remove(d.tail)
	}

	e := d.pool.Get().(*entry) //nolint:forcetypeassert // pool only holds *entry
	e.fp = fp
	e.next = d.head
	if d.head != nil {
		d.head.prev = e
	}
	d.head = e
	if d.tail == nil {
		d.tail = e
	}
	d.seen[fp] = e
	d.size.Add(1)
	return false
}

func (d *fingerprintSet) Unrecord(_ context.Context, fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.seen[fp]; ok {
		d.remove(e)
	}
}

func (d *fingerprintSet) Reset(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]*entry)
	d.head, d.tail = nil, nil
	d.size.Store(0)
}

// remove unlinks e. Caller holds d.mu.
func (d *fingerprintSet) remove(e *entry) {
	if e == nil {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		d.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		d.tail = e.prev
	}
	delete(d.seen, e.fp)
	*e = entry{}
	d.pool.Put(e)
	d.size.Add(-1)
}

func (d *fingerprintSet) Size() int64 {
	return d.size.Load()
}
