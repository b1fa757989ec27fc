package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/compare"
	"github.com/raysh454/darklens/internal/detector"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/taxonomy"
	"github.com/raysh454/darklens/internal/utils"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrNotConfigured = errors.New("component not configured")
	ErrInvalidTarget = errors.New("invalid target")
)

// ClientDetector names records scored from client-supplied detections.
const ClientDetector = "client"

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

// Audit stages reported in progress events.
const (
	StageCapture = "capture"
	StageDetect  = "detect"
	StageAudit   = "audit"
	StageStore   = "store"
)

var auditStages = []string{StageCapture, StageDetect, StageAudit, StageStore}

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress
	Stage     string `json:"stage,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Total     int    `json:"total,omitempty"`

	// For results
	Record *model.AuditRecord `json:"record,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Job is a background audit. Values handed out by the Orchestrator are
// snapshots; Events is shared and closed when the job ends.
type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Target    string        `json:"target"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
	Events    chan JobEvent `json:"-"`

	Record *model.AuditRecord `json:"record,omitempty"`
}

func (j *Job) finished() bool {
	return j.Status == JobDone || j.Status == JobFailed || j.Status == JobCanceled
}

// Orchestrator runs the audit pipeline: capture, detect, audit, store.
type Orchestrator struct {
	cfg      *Config
	comps    Components
	taxonomy *taxonomy.Taxonomy
	logger   logging.Logger
	clock    func() time.Time

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	jobsWG     sync.WaitGroup
}

// NewOrchestrator ties together config, pipeline components and logger.
func NewOrchestrator(cfg *Config, comps *Components, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	o := &Orchestrator{
		cfg:        cfg,
		taxonomy:   taxonomy.Default(),
		logger:     logger,
		clock:      time.Now,
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
	}
	if comps != nil {
		o.comps = *comps
	}
	return o
}

// Taxonomy returns the rule set every audit is scored against.
func (o *Orchestrator) Taxonomy() *taxonomy.Taxonomy { return o.taxonomy }

// Components returns the wired pipeline stages.
func (o *Orchestrator) Components() Components { return o.comps }

// Capture renders target and exports its screenshot without auditing it.
func (o *Orchestrator) Capture(ctx context.Context, target string) (*model.Capture, error) {
	if _, err := canonical(target); err != nil {
		return nil, err
	}
	if o.comps.Capturer == nil {
		return nil, fmt.Errorf("capturer: %w", ErrNotConfigured)
	}
	c, err := o.comps.Capturer.Capture(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", target, err)
	}
	if o.comps.Exporter != nil {
		if _, err := o.comps.Exporter.Save(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Audit runs the full pipeline against target and stores the result.
func (o *Orchestrator) Audit(ctx context.Context, target string) (*model.AuditRecord, error) {
	return o.audit(ctx, target, nil)
}

type progressFunc func(stage string, processed int)

func (o *Orchestrator) audit(ctx context.Context, target string, progress progressFunc) (*model.AuditRecord, error) {
	if progress == nil {
		progress = func(string, int) {}
	}

	progress(StageCapture, 0)
	c, err := o.Capture(ctx, target)
	if err != nil {
		return nil, err
	}
	return o.analyze(ctx, c, progress)
}

// AnalyzeCapture audits an existing capture, e.g. an uploaded screenshot.
func (o *Orchestrator) AnalyzeCapture(ctx context.Context, c *model.Capture) (*model.AuditRecord, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: no capture", ErrInvalidTarget)
	}
	if _, err := canonical(c.TargetURL); err != nil {
		return nil, err
	}
	if o.comps.Exporter != nil && c.ImagePath == "" && len(c.Image) > 0 {
		if _, err := o.comps.Exporter.Save(c); err != nil {
			return nil, err
		}
	}
	return o.analyze(ctx, c, func(string, int) {})
}

func (o *Orchestrator) analyze(ctx context.Context, c *model.Capture, progress progressFunc) (*model.AuditRecord, error) {
	if o.comps.Detector == nil {
		return nil, fmt.Errorf("detector: %w", ErrNotConfigured)
	}

	progress(StageDetect, 1)
	started := o.clock()
	det := o.comps.Detector
	detections, err := det.Detect(ctx, c)
	if errors.Is(err, detector.ErrNoMarkup) && o.comps.Fallback != nil {
		o.logger.Warn("capture has no markup, using fallback detector",
			logging.F("target", c.TargetURL),
			logging.F("fallback", o.comps.Fallback.Name()))
		det = o.comps.Fallback
		detections, err = det.Detect(ctx, c)
	}
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", c.TargetURL, err)
	}
	o.logger.Debug("detection finished",
		logging.F("target", c.TargetURL),
		logging.F("detector", det.Name()),
		logging.F("detections", len(detections)),
		logging.F("duration", o.clock().Sub(started)))

	screenshot := ""
	if c.ImagePath != "" {
		screenshot = "/exports/" + filepath.Base(c.ImagePath)
	}
	return o.score(ctx, c.TargetURL, detections, det.Name(), screenshot, progress)
}

// Score audits detections supplied by the caller. Invalid detections yield
// an error matching auditor.ErrInvalidDetection.
func (o *Orchestrator) Score(ctx context.Context, target string, detections []auditor.RawDetection) (*model.AuditRecord, error) {
	if _, err := canonical(target); err != nil {
		return nil, err
	}
	return o.score(ctx, target, detections, ClientDetector, "", func(string, int) {})
}

func (o *Orchestrator) score(ctx context.Context, target string, detections []auditor.RawDetection, detectorName, screenshot string, progress progressFunc) (*model.AuditRecord, error) {
	key, err := canonical(target)
	if err != nil {
		return nil, err
	}

	progress(StageAudit, 2)
	for _, d := range detections {
		if !o.taxonomy.Has(d.Label) {
			o.logger.Debug("unmapped detection label", logging.F("label", d.Label), logging.F("target", target))
		}
	}

	a := auditor.New(target, o.taxonomy, auditor.WithClock(o.clock))
	report, err := a.AnalyzeDetections(detections)
	if err != nil {
		return nil, fmt.Errorf("audit %s: %w", target, err)
	}

	rec := model.NewAuditRecord(uuid.NewString(), key, report, o.clock())
	rec.Detector = detectorName
	rec.Screenshot = screenshot

	progress(StageStore, 3)
	if o.comps.Store != nil {
		if err := o.comps.Store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("store audit: %w", err)
		}
	}

	o.logger.Info("audit finished",
		logging.F("id", rec.ID),
		logging.F("target", target),
		logging.F("trust_score", rec.TrustScore),
		logging.F("status", string(rec.Status)),
		logging.F("violations", rec.TotalViolations))
	return rec, nil
}

// AuditBatch audits targets with at most BatchConcurrency in flight. Results
// keep the input order; the first failure cancels the remaining audits.
func (o *Orchestrator) AuditBatch(ctx context.Context, targets []string) ([]*model.AuditRecord, error) {
	results := make([]*model.AuditRecord, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.cfg.BatchConcurrency))
	for i, target := range targets {
		g.Go(func() error {
			rec, err := o.Audit(gctx, target)
			if err != nil {
				return err
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DiscoverTargets lists root and the same-site pages linked from it.
func (o *Orchestrator) DiscoverTargets(ctx context.Context, root string) ([]string, error) {
	if _, err := canonical(root); err != nil {
		return nil, err
	}
	if o.comps.Spider == nil {
		return nil, fmt.Errorf("spider: %w", ErrNotConfigured)
	}
	pages, err := o.comps.Spider.Enumerate(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	return pages, nil
}

// AuditSite audits every page DiscoverTargets finds under root.
func (o *Orchestrator) AuditSite(ctx context.Context, root string) ([]*model.AuditRecord, error) {
	pages, err := o.DiscoverTargets(ctx, root)
	if err != nil {
		return nil, err
	}
	o.logger.Info("auditing site", logging.F("root", root), logging.F("pages", len(pages)))
	return o.AuditBatch(ctx, pages)
}

// Reports

func (o *Orchestrator) GetReport(ctx context.Context, id string) (*model.AuditRecord, error) {
	if o.comps.Store == nil {
		return nil, fmt.Errorf("store: %w", ErrNotConfigured)
	}
	return o.comps.Store.Get(ctx, id)
}

// ListReports returns the most recent records, optionally only those of target.
func (o *Orchestrator) ListReports(ctx context.Context, target string, limit int) ([]*model.AuditRecord, error) {
	if o.comps.Store == nil {
		return nil, fmt.Errorf("store: %w", ErrNotConfigured)
	}
	if target == "" {
		return o.comps.Store.List(ctx, limit)
	}
	key, err := canonical(target)
	if err != nil {
		return nil, err
	}
	return o.comps.Store.ListByTarget(ctx, key, limit)
}

// CompareReports diffs two stored audits.
func (o *Orchestrator) CompareReports(ctx context.Context, baseID, headID string) (*compare.ReportDiff, error) {
	base, err := o.GetReport(ctx, baseID)
	if err != nil {
		return nil, fmt.Errorf("base report %s: %w", baseID, err)
	}
	head, err := o.GetReport(ctx, headID)
	if err != nil {
		return nil, fmt.Errorf("head report %s: %w", headID, err)
	}
	return compare.Diff(base, head)
}

// TargetTrend summarises every stored audit of target.
func (o *Orchestrator) TargetTrend(ctx context.Context, target string) (*compare.TargetTrend, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, utils.ErrEmptyTarget)
	}
	recs, err := o.ListReports(ctx, target, 0)
	if err != nil {
		return nil, err
	}
	return compare.Trend(recs)
}

// PruneReports deletes stored audits older than age.
func (o *Orchestrator) PruneReports(ctx context.Context, age time.Duration) (int64, error) {
	if o.comps.Store == nil {
		return 0, fmt.Errorf("store: %w", ErrNotConfigured)
	}
	if age <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %s", age)
	}
	n, err := o.comps.Store.DeleteBefore(ctx, o.clock().Add(-age))
	if err != nil {
		return 0, err
	}
	o.logger.Info("pruned reports", logging.F("deleted", n), logging.F("older_than", age))
	return n, nil
}

func canonical(target string) (string, error) {
	key, err := utils.CanonicalTarget(target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return key, nil
}

// Jobs

func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok || job == nil || job.Events == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) updateJob(jobID string, fn func(j *Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

// pruneJobsLocked drops finished jobs older than the retention window.
func (o *Orchestrator) pruneJobsLocked(now time.Time) {
	for id, j := range o.jobs {
		if j.finished() && !j.EndedAt.IsZero() && now.Sub(j.EndedAt) > o.cfg.JobRetentionTime {
			delete(o.jobs, id)
		}
	}
}

// StartAuditJob audits target in the background. The job outlives the call;
// cancel ctx or call CancelJob to stop it.
func (o *Orchestrator) StartAuditJob(ctx context.Context, target string) (*Job, error) {
	if _, err := canonical(target); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	job := &Job{
		ID:        jobID,
		Type:      "audit",
		Target:    target,
		Status:    JobPending,
		StartedAt: o.clock().UTC(),
		Events:    make(chan JobEvent, 16),
	}
	jobCtx, cancel := context.WithCancel(ctx)

	o.jobsMu.Lock()
	o.pruneJobsLocked(o.clock())
	o.jobs[jobID] = job
	o.jobCancels[jobID] = cancel
	snapshot := *job
	o.jobsMu.Unlock()

	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobPending})

	o.jobsWG.Add(1)
	go o.runAuditJob(jobCtx, job)

	return &snapshot, nil
}

func (o *Orchestrator) runAuditJob(ctx context.Context, job *Job) {
	jobID := job.ID
	defer o.jobsWG.Done()
	defer func() {
		o.jobsMu.Lock()
		job.EndedAt = o.clock().UTC()
		if cancel := o.jobCancels[jobID]; cancel != nil {
			cancel()
		}
		delete(o.jobCancels, jobID)
		o.jobsMu.Unlock()

		// Close events channel so websocket loop can terminate cleanly
		close(job.Events)
	}()

	o.updateJob(jobID, func(j *Job) { j.Status = JobRunning })
	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobRunning})

	rec, err := o.audit(ctx, job.Target, func(stage string, processed int) {
		o.emitJobEvent(jobID, JobEvent{
			JobID:     jobID,
			Type:      JobEventProgress,
			Stage:     stage,
			Processed: processed,
			Total:     len(auditStages),
		})
	})

	if ctxErr := ctx.Err(); ctxErr != nil {
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobCanceled
			j.Error = ctxErr.Error()
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobCanceled, Error: ctxErr.Error()})
		return
	}
	if err != nil {
		o.logger.Warn("audit job failed", logging.F("job_id", jobID), logging.Err(err))
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobFailed
			j.Error = err.Error()
		})
		o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobFailed, Error: err.Error()})
		return
	}

	o.updateJob(jobID, func(j *Job) {
		j.Status = JobDone
		j.Record = rec
	})
	o.emitJobEvent(jobID, JobEvent{
		JobID:     jobID,
		Type:      JobEventProgress,
		Processed: len(auditStages),
		Total:     len(auditStages),
	})
	o.emitJobEvent(jobID, JobEvent{JobID: jobID, Type: JobEventResult, Status: JobDone, Record: rec})
}

// CancelJob stops a running job. Cancelling a finished job is a no-op.
func (o *Orchestrator) CancelJob(jobID string) error {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if _, ok := o.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	if cancel := o.jobCancels[jobID]; cancel != nil {
		cancel()
	}
	return nil
}

// GetJob returns a snapshot of the job.
func (o *Orchestrator) GetJob(jobID string) (*Job, error) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	o.pruneJobsLocked(o.clock())
	j, ok := o.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// ListJobs returns snapshots of all retained jobs, oldest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	o.pruneJobsLocked(o.clock())
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].StartedAt.Before(out[k].StartedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// Close cancels running jobs and waits for them to finish. It does not close
// the components.
func (o *Orchestrator) Close() {
	o.jobsMu.Lock()
	for _, cancel := range o.jobCancels {
		cancel()
	}
	o.jobsMu.Unlock()
	o.jobsWG.Wait()
}
