// Package fs implements the audit log as JSON segment files written through
// afs. Every Append writes one segment, so a batch lands in a single upload.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/viant/accessflow/model/audit"
	"github.com/viant/accessflow/model/fault"
	"github.com/viant/accessflow/service/auditlog"
)

const segmentExt = ".json"

// Log stores audit segments under basePath.
type Log struct {
	basePath string
	fs       afs.Service
	logger   *slog.Logger
	mu       sync.RWMutex
	sequence int64
	loaded   bool
}

var _ auditlog.Log = (*Log)(nil)

func (l *Log) Append(ctx context.Context, events ...*audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	auditlog.Prepare(events)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureSequence(ctx); err != nil {
		return fault.NewUnavailableError("append audit events", err)
	}
	records := make([]*audit.Event, len(events))
	next := l.sequence
	for i, e := range events {
		next++
		records[i] = e.Clone()
		records[i].Sequence = next
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fault.NewUnavailableError("append audit events", err)
	}
	segment := l.segmentPath(records[0].Sequence)
	if err := l.fs.Upload(ctx, segment, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fault.NewUnavailableError("append audit events", fmt.Errorf("failed to write segment %s: %w", segment, err))
	}
	l.sequence = next
	for i, e := range events {
		e.Sequence = records[i].Sequence
	}
	return nil
}

func (l *Log) List(ctx context.Context, filter *auditlog.Filter) (*auditlog.Page, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events, err := l.load(ctx)
	if err != nil {
		return nil, fault.NewUnavailableError("list audit events", err)
	}
	limit := filter.EffectiveLimit()
	page := &auditlog.Page{Items: []*audit.Event{}}
	for i := len(events) - 1; i >= 0; i-- {
		if !filter.Match(events[i]) {
			continue
		}
		page.Total++
		if len(page.Items) < limit {
			page.Items = append(page.Items, events[i])
		}
	}
	return page, nil
}

// load reads all segments in sequence order.
func (l *Log) load(ctx context.Context) ([]*audit.Event, error) {
	objects, err := l.fs.List(ctx, l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit segments: %w", err)
	}
	var events []*audit.Event
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), segmentExt) {
			continue
		}
		data, err := l.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit segment %s: %w", object.URL(), err)
		}
		var segment []*audit.Event
		if err := json.Unmarshal(data, &segment); err != nil {
			l.logger.Warn("skipping corrupt audit segment", "url", object.URL(), "error", err)
			continue
		}
		events = append(events, segment...)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Sequence < events[j].Sequence })
	return events, nil
}

// ensureSequence resumes numbering after the highest persisted segment.
func (l *Log) ensureSequence(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	events, err := l.load(ctx)
	if err != nil {
		return err
	}
	if n := len(events); n > 0 {
		l.sequence = events[n-1].Sequence
	}
	l.loaded = true
	return nil
}

func (l *Log) segmentPath(first int64) string {
	return url.Join(l.basePath, fmt.Sprintf("%020d%s", first, segmentExt))
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report unreadable segments.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithFS replaces the storage service.
func WithFS(fs afs.Service) Option {
	return func(l *Log) { l.fs = fs }
}

// New creates a filesystem audit log rooted at basePath.
func New(ctx context.Context, basePath string, opts ...Option) (*Log, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	ret := &Log{fs: afs.New(), logger: slog.Default()}
	for _, opt := range opts {
		opt(ret)
	}
	exists, _ := ret.fs.Exists(ctx, basePath)
	if !exists {
		if err := ret.fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	ret.basePath = url.Normalize(basePath, file.Scheme)
	return ret, nil
}
