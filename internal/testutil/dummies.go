// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/store"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// DebugMessages returns a copy of the recorded debug lines.
func (l *DummyLogger) DebugMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.Debugs...)
}

// ─── Capturer ──────────────────────────────────────────────────────────

var ErrDummyFailure = errors.New("dummy failure")

// PNG returns an encoded blank image of the given size.
func PNG(width, height int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)))
	return buf.Bytes()
}

// DummyCapturer implements interfaces.Capturer.
// By default it returns a 1280x720 blank screenshot with HTML as markup.
// Set FailTargets[target] = true to force an error for a specific target.
type DummyCapturer struct {
	HTML          string
	Elements      []model.ElementBox
	ResponseDelay time.Duration
	FailTargets   map[string]bool
	Err           error

	mu      sync.Mutex
	Targets []string
	closed  bool
}

func (d *DummyCapturer) Capture(ctx context.Context, target string) (*model.Capture, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.Targets = append(d.Targets, target)
	d.mu.Unlock()

	if d.FailTargets[target] {
		return nil, ErrDummyFailure
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return &model.Capture{
		ID:         uuid.NewString(),
		TargetURL:  target,
		Image:      PNG(1280, 720),
		HTML:       d.HTML,
		Elements:   append([]model.ElementBox(nil), d.Elements...),
		Width:      1280,
		Height:     720,
		CapturedAt: time.Now().UTC(),
	}, nil
}

func (d *DummyCapturer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns the targets captured so far.
func (d *DummyCapturer) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Targets...)
}

func (d *DummyCapturer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ─── Detector ──────────────────────────────────────────────────────────

// DummyDetector implements interfaces.Detector and returns Detections for
// every capture, or Err.
type DummyDetector struct {
	Detections    []auditor.RawDetection
	Err           error
	ResponseDelay time.Duration

	mu   sync.Mutex
	Seen []*model.Capture
}

func (d *DummyDetector) Name() string { return "dummy" }

func (d *DummyDetector) Detect(ctx context.Context, c *model.Capture) ([]auditor.RawDetection, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Seen = append(d.Seen, c)
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]auditor.RawDetection(nil), d.Detections...), nil
}

// ─── Enumerator ────────────────────────────────────────────────────────

// DummyEnumerator implements interfaces.Enumerator. Sites maps a root to the
// pages it yields; unknown roots yield just themselves.
type DummyEnumerator struct {
	Sites map[string][]string
	Err   error
}

func (d *DummyEnumerator) Enumerate(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	if pages, ok := d.Sites[root]; ok {
		return append([]string(nil), pages...), nil
	}
	return []string{root}, nil
}

// ─── ReportStore ───────────────────────────────────────────────────────

// DummyReportStore implements interfaces.ReportStore in memory with the same
// ordering and error semantics as the SQL store.
type DummyReportStore struct {
	mu      sync.Mutex
	records map[string]*model.AuditRecord
	SaveErr error
	ReadErr error
	closed  bool
}

func NewDummyReportStore() *DummyReportStore {
	return &DummyReportStore{records: make(map[string]*model.AuditRecord)}
}

func (s *DummyReportStore) Save(_ context.Context, rec *model.AuditRecord) error {
	if rec == nil || rec.ID == "" || rec.Report == nil {
		return store.ErrInvalidRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	if s.records == nil {
		s.records = make(map[string]*model.AuditRecord)
	}
	if _, ok := s.records[rec.ID]; ok {
		return store.ErrInvalidRecord
	}
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *DummyReportStore) Get(_ context.Context, id string) (*model.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrReportNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *DummyReportStore) List(_ context.Context, limit int) ([]*model.AuditRecord, error) {
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	return s.filter("", limit), nil
}

func (s *DummyReportStore) ListByTarget(_ context.Context, targetKey string, limit int) ([]*model.AuditRecord, error) {
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	return s.filter(targetKey, limit), nil
}

func (s *DummyReportStore) filter(targetKey string, limit int) []*model.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AuditRecord, 0, len(s.records))
	for _, rec := range s.records {
		if targetKey != "" && rec.TargetKey != targetKey {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *DummyReportStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *DummyReportStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *DummyReportStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
