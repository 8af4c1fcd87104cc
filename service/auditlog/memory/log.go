// Package memory implements a bounded in-memory audit log. Once the
// capacity is reached the oldest events are evicted.
package memory

import (
	"context"
	"sync"

	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/service/auditlog"
)

// DefaultCapacity is the number of retained events.
const DefaultCapacity = 5000

// Log keeps the most recent events in a ring buffer.
type Log struct {
	mu       sync.RWMutex
	events   []*audit.Event
	start    int
	size     int
	sequence int64
}

var _ auditlog.Log = (*Log)(nil)

// New creates a log retaining up to capacity events.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{events: make([]*audit.Event, capacity)}
}

func (l *Log) Append(_ context.Context, events ...*audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	auditlog.Prepare(events)
	l.mu.Lock()
	defer l.mu.Unlock()
	capacity := len(l.events)
	for _, e := range events {
		l.sequence++
		e.Sequence = l.sequence
		record := e.Clone()
		if l.size < capacity {
			l.events[(l.start+l.size)%capacity] = record
			l.size++
			continue
		}
		l.events[l.start] = record
		l.start = (l.start + 1) % capacity
	}
	return nil
}

func (l *Log) List(_ context.Context, filter *auditlog.Filter) (*auditlog.Page, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	limit := filter.EffectiveLimit()
	page := &auditlog.Page{Items: []*audit.Event{}}
	capacity := len(l.events)
	for i := l.size - 1; i >= 0; i-- {
		e := l.events[(l.start+i)%capacity]
		if !filter.Match(e) {
			continue
		}
		page.Total++
		if len(page.Items) < limit {
			page.Items = append(page.Items, e.Clone())
		}
	}
	return page, nil
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
