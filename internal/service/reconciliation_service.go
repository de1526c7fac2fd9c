package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gstrecon/internal/domain"
	"gstrecon/internal/export"
	"gstrecon/internal/logger"
	"gstrecon/internal/metrics"
	"gstrecon/internal/port"
	"gstrecon/internal/reconcile"
	"gstrecon/internal/report"
)

const (
	component       = "reconciliationService"
	insightsTopN    = 10
	defaultPresign  = time.Hour
	alertVendorsMax = 20
)

// CreateRunInput is the DTO for reconciling and persisting a batch.
type CreateRunInput struct {
	Label   string
	Records []domain.RawRecord
}

// CreateRunResult reports the stored run and whether an earlier run of the same batch was reused.
type CreateRunResult struct {
	Run    *domain.Run
	Reused bool
}

// ExportFile is a rendered mismatch report.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Options tunes the service outside the engine itself.
type Options struct {
	MaxRecords      int
	RunTimeout      time.Duration
	AlertRecipients []string
	PresignExpiry   time.Duration
}

// ReconciliationService runs reconciliations and serves their stored results.
type ReconciliationService interface {
	Preview(ctx context.Context, records []domain.RawRecord) (*domain.Snapshot, error)
	Create(ctx context.Context, input *CreateRunInput) (*CreateRunResult, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, offset, limit int) ([]domain.Run, int, error)
	ListMismatches(ctx context.Context, id uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error)
	ListVendors(ctx context.Context, id uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error)
	ListGroups(ctx context.Context, id uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error)
	Insights(ctx context.Context, id uuid.UUID) (*domain.Insights, error)
	Graph(ctx context.Context, id uuid.UUID, opts domain.GraphOptions) (*domain.Graph, error)
	Export(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*ExportFile, error)
	ReportURL(ctx context.Context, id uuid.UUID) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type reconciliationService struct {
	engine  *reconcile.Engine
	runRepo port.RunRepository
	cache   port.RunCache
	archive port.ReportArchive // nil when archiving is disabled
	emailer port.EmailSender
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	opts    Options
	now     func() time.Time
}

// NewReconciliationService creates a new ReconciliationService implementation.
func NewReconciliationService(
	engine *reconcile.Engine,
	runRepo port.RunRepository,
	cache port.RunCache,
	archive port.ReportArchive,
	emailer port.EmailSender,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	opts Options,
) ReconciliationService {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = defaultPresign
	}
	return &reconciliationService{
		engine:  engine,
		runRepo: runRepo,
		cache:   cache,
		archive: archive,
		emailer: emailer,
		metrics: m,
		log:     log.WithField("component", component),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Fingerprint hashes a batch independently of record order.
func Fingerprint(records []domain.RawRecord) (string, error) {
	lines := make([]string, len(records))
	for i := range records {
		b, err := json.Marshal(&records[i])
		if err != nil {
			return "", fmt.Errorf("encoding record %d: %w", i, err)
		}
		sum := sha256.Sum256(b)
		lines[i] = hex.EncodeToString(sum[:])
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *reconciliationService) checkSize(records []domain.RawRecord) error {
	if s.opts.MaxRecords > 0 && len(records) > s.opts.MaxRecords {
		return fmt.Errorf("%w: %d > %d", domain.ErrBatchTooLarge, len(records), s.opts.MaxRecords)
	}
	return nil
}

func (s *reconciliationService) run(ctx context.Context, records []domain.RawRecord, prior map[string]int) (*domain.Snapshot, time.Duration, error) {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := s.engine.Run(ctx, records, prior)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveFailure()
		return nil, elapsed, err
	}
	s.metrics.ObserveRun(snap, elapsed)
	return snap, elapsed, nil
}

func (s *reconciliationService) Preview(ctx context.Context, records []domain.RawRecord) (*domain.Snapshot, error) {
	if err := s.checkSize(records); err != nil {
		return nil, err
	}
	snap, _, err := s.run(ctx, records, nil)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Preview: %w", err)
	}
	return snap, nil
}

func (s *reconciliationService) Create(ctx context.Context, input *CreateRunInput) (*CreateRunResult, error) {
	if err := s.checkSize(input.Records); err != nil {
		return nil, err
	}
	fp, err := Fingerprint(input.Records)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Create: %w", err)
	}
	log := s.log.WithField("fingerprint", fp)

	if run := s.cached(ctx, fp); run != nil {
		log.WithField("run_id", run.ID).Info("reusing cached reconciliation run")
		return &CreateRunResult{Run: run, Reused: true}, nil
	}

	unlock, err := s.cache.Lock(ctx, fp)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			return nil, err
		}
		logger.LogError(log, component, "Create.Lock", nil, err)
		unlock = func(context.Context) error { return nil }
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.LogError(log, component, "Create.Unlock", nil, err)
		}
	}()

	existing, err := s.runRepo.GetByFingerprint(ctx, fp)
	switch {
	case err == nil:
		s.remember(ctx, fp, existing.ID)
		return &CreateRunResult{Run: existing, Reused: true}, nil
	case !errors.Is(err, domain.ErrRunNotFound):
		return nil, fmt.Errorf("reconciliationService.Create: %w", err)
	}

	prior, err := s.runRepo.LatestVendorScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Create prior scores: %w", err)
	}

	snap, elapsed, err := s.run(ctx, input.Records, prior)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Create: %w", err)
	}

	run := &domain.Run{
		ID:          uuid.New(),
		Fingerprint: fp,
		Label:       input.Label,
		RecordCount: len(input.Records),
		Stats:       snap.Stats,
		Issues:      snap.Issues,
		Duplicates:  snap.Duplicates,
		DurationMs:  elapsed.Milliseconds(),
		CreatedAt:   s.now(),
	}
	if err := s.runRepo.Create(ctx, run, snap); err != nil {
		return nil, fmt.Errorf("reconciliationService.Create: %w", err)
	}
	log = log.WithField("run_id", run.ID)
	log.WithFields(logrus.Fields{
		"records":    run.RecordCount,
		"groups":     len(snap.Groups),
		"mismatches": len(snap.Mismatches),
		"issues":     len(snap.Issues),
		"elapsed_ms": run.DurationMs,
	}).Info("reconciliation run stored")

	s.metrics.ObserveStored(run.Stats)
	s.remember(ctx, fp, run.ID)
	s.archiveReport(ctx, log, run, snap)
	s.alert(ctx, log, run, snap)

	return &CreateRunResult{Run: run}, nil
}

// cached returns the stored run of a fingerprint when the cache knows it.
func (s *reconciliationService) cached(ctx context.Context, fp string) *domain.Run {
	id, ok, err := s.cache.Get(ctx, fp)
	if err != nil {
		logger.LogError(s.log, component, "cached", fp, err)
		return nil
	}
	s.metrics.ObserveCache(ok)
	if !ok {
		return nil
	}
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRunNotFound) {
			logger.LogError(s.log, component, "cached", id, err)
		}
		_ = s.cache.Invalidate(ctx, fp)
		return nil
	}
	return run
}

func (s *reconciliationService) remember(ctx context.Context, fp string, id uuid.UUID) {
	if err := s.cache.Set(ctx, fp, id); err != nil {
		logger.LogError(s.log, component, "remember", id, err)
	}
}

// archiveReport uploads the workbook of a new run. Failures leave the run without a report key.
func (s *reconciliationService) archiveReport(ctx context.Context, log logrus.FieldLogger, run *domain.Run, snap *domain.Snapshot) {
	if s.archive == nil {
		return
	}
	var buf bytes.Buffer
	err := export.WriteXLSX(&buf, &export.Report{
		Label:      run.Label,
		Stats:      run.Stats,
		Mismatches: snap.Mismatches,
		Vendors:    snap.Vendors,
	})
	if err != nil {
		logger.LogError(log, component, "archiveReport", nil, err)
		return
	}

	key := path.Join(run.ID.String(), export.BuildFilename(run.Label, domain.ExportXLSX, run.CreatedAt))
	obj, err := s.archive.Put(ctx, key, &buf, export.ContentType(domain.ExportXLSX))
	if err != nil {
		logger.LogError(log, component, "archiveReport", key, err)
		return
	}
	if err := s.runRepo.SetReportKey(ctx, run.ID, obj.Key); err != nil {
		logger.LogError(log, component, "archiveReport", key, err)
		return
	}
	run.ReportKey = obj.Key
	log.WithField("report_key", obj.Key).Info("reconciliation report archived")
}

// alert notifies the configured recipients about high-risk vendors of a new run.
func (s *reconciliationService) alert(ctx context.Context, log logrus.FieldLogger, run *domain.Run, snap *domain.Snapshot) {
	if run.Stats.HighRiskVendors == 0 || len(s.opts.AlertRecipients) == 0 {
		return
	}
	var high []domain.VendorRiskRecord
	for i := range snap.Vendors {
		if snap.Vendors[i].PredictedRisk == domain.RiskHigh {
			high = append(high, snap.Vendors[i])
		}
	}
	domain.SortVendorsByRisk(high)
	if len(high) > alertVendorsMax {
		high = high[:alertVendorsMax]
	}

	a := &port.RiskAlert{
		To:       s.opts.AlertRecipients,
		RunID:    run.ID,
		RunLabel: run.Label,
		Stats:    run.Stats,
		Vendors:  high,
	}
	if s.archive != nil && run.ReportKey != "" {
		if url, err := s.archive.PresignGet(ctx, run.ReportKey, s.opts.PresignExpiry); err == nil {
			a.ReportURL = url
		}
	}
	if err := s.emailer.SendRiskAlert(ctx, a); err != nil {
		logger.LogError(log, component, "alert", len(a.To), err)
		return
	}
	log.WithField("vendors", len(high)).Info("risk alert sent")
}

func (s *reconciliationService) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	return s.runRepo.GetByID(ctx, id)
}

func (s *reconciliationService) List(ctx context.Context, offset, limit int) ([]domain.Run, int, error) {
	return s.runRepo.List(ctx, offset, limit)
}

func (s *reconciliationService) ListMismatches(ctx context.Context, id uuid.UUID, filter *domain.MismatchFilter) ([]domain.MismatchRecord, int, error) {
	if _, err := s.runRepo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.runRepo.ListMismatches(ctx, id, filter)
}

func (s *reconciliationService) ListVendors(ctx context.Context, id uuid.UUID, filter *domain.VendorFilter) ([]domain.VendorRiskRecord, int, error) {
	if _, err := s.runRepo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.runRepo.ListVendors(ctx, id, filter)
}

func (s *reconciliationService) ListGroups(ctx context.Context, id uuid.UUID, filter *domain.GroupFilter) ([]domain.ReconciliationGroup, int, error) {
	if _, err := s.runRepo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.runRepo.ListGroups(ctx, id, filter)
}

// stored loads a run with every group, mismatch and vendor record.
type stored struct {
	run        *domain.Run
	groups     []domain.ReconciliationGroup
	mismatches []domain.MismatchRecord
	vendors    []domain.VendorRiskRecord
}

func (s *reconciliationService) load(ctx context.Context, id uuid.UUID, withGroups, withVendors bool) (*stored, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &stored{run: run}
	if withGroups {
		if out.groups, _, err = s.runRepo.ListGroups(ctx, id, &domain.GroupFilter{}); err != nil {
			return nil, err
		}
	}
	if out.mismatches, _, err = s.runRepo.ListMismatches(ctx, id, &domain.MismatchFilter{}); err != nil {
		return nil, err
	}
	if withVendors {
		if out.vendors, _, err = s.runRepo.ListVendors(ctx, id, &domain.VendorFilter{}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *reconciliationService) Insights(ctx context.Context, id uuid.UUID) (*domain.Insights, error) {
	st, err := s.load(ctx, id, true, true)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Insights: %w", err)
	}
	return report.BuildInsights(st.run.Stats, st.groups, st.mismatches, st.vendors, insightsTopN), nil
}

func (s *reconciliationService) Graph(ctx context.Context, id uuid.UUID, opts domain.GraphOptions) (*domain.Graph, error) {
	st, err := s.load(ctx, id, true, false)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Graph: %w", err)
	}
	return report.BuildGraph(st.groups, st.mismatches, opts), nil
}

func (s *reconciliationService) Export(ctx context.Context, id uuid.UUID, format domain.ExportFormat) (*ExportFile, error) {
	if format != domain.ExportCSV && format != domain.ExportXLSX {
		return nil, domain.ErrInvalidExportFormat
	}
	st, err := s.load(ctx, id, false, format == domain.ExportXLSX)
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Export: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case domain.ExportCSV:
		err = export.WriteCSV(&buf, st.mismatches)
	case domain.ExportXLSX:
		err = export.WriteXLSX(&buf, &export.Report{
			Label:      st.run.Label,
			Stats:      st.run.Stats,
			Mismatches: st.mismatches,
			Vendors:    st.vendors,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("reconciliationService.Export: %w", err)
	}

	return &ExportFile{
		Filename:    export.BuildFilename(st.run.Label, format, st.run.CreatedAt),
		ContentType: export.ContentType(format),
		Data:        buf.Bytes(),
	}, nil
}

func (s *reconciliationService) ReportURL(ctx context.Context, id uuid.UUID) (string, error) {
	if s.archive == nil {
		return "", domain.ErrArchiveDisabled
	}
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if run.ReportKey == "" {
		return "", domain.ErrReportNotArchived
	}
	url, err := s.archive.PresignGet(ctx, run.ReportKey, s.opts.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("reconciliationService.ReportURL: %w", err)
	}
	return url, nil
}

func (s *reconciliationService) Delete(ctx context.Context, id uuid.UUID) error {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.runRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("reconciliationService.Delete: %w", err)
	}
	if err := s.cache.Invalidate(ctx, run.Fingerprint); err != nil {
		logger.LogError(s.log, component, "Delete", id, err)
	}
	if s.archive != nil && run.ReportKey != "" {
		if err := s.archive.Delete(ctx, run.ReportKey); err != nil {
			logger.LogError(s.log, component, "Delete", run.ReportKey, err)
		}
	}
	s.log.WithField("run_id", id).Info("reconciliation run deleted")
	return nil
}
