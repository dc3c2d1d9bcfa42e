package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// Load stages.
const (
	StageHospitals = "hospitals"
	StageDistricts = "districts"
	StageCenters   = "centers"
	StageExport    = "export"
)

var (
	// ErrNoHospitals is returned when no spreadsheet row survives filtering.
	ErrNoHospitals = errors.New("no hospitals left after filtering")
	// ErrNotLoaded is returned by queries issued before the data they need is loaded.
	ErrNotLoaded = errors.New("data not loaded yet")
	// ErrUnknownDepartment is returned when a department has no hospitals.
	ErrUnknownDepartment = errors.New("unknown department")
)

// StageError records the failure of one load stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// HospitalSource reads the filtered hospital registry.
type HospitalSource interface {
	LoadHospitals(ctx context.Context) ([]domain.Hospital, error)
}

// DistrictSource reads the district boundary layer.
type DistrictSource interface {
	LoadDistricts(ctx context.Context) ([]domain.District, error)
}

// CenterSource reads the populated center layer.
type CenterSource interface {
	LoadCenters(ctx context.Context) ([]domain.PopulatedCenter, error)
}

// Exporter publishes per-district hospital counts.
type Exporter interface {
	ExportDistricts(ctx context.Context, counts []domain.DistrictCount) error
}

// state is an immutable snapshot of loaded data. Load swaps it whole.
type state struct {
	hospitals []domain.Hospital
	districts []domain.District
	centers   []domain.PopulatedCenter
	index     *spatial.Index
	unmatched int
	stageErrs map[string]error
	loadedAt  time.Time
}

// Pipeline loads the inputs once and answers dashboard queries from memory.
type Pipeline struct {
	hospitals HospitalSource
	districts DistrictSource
	centers   CenterSource
	exporter  Exporter
	logger    *slog.Logger
	metrics   *observability.Metrics
	cache     *gocache.Cache
	ready     atomic.Bool

	mu      sync.RWMutex
	state   *state
	loadErr error
}

// New creates a Pipeline. districts, centers and exporter may be nil; the
// matching stages are then reported as not configured or skipped.
func New(h HospitalSource, d DistrictSource, c CenterSource, x Exporter, logger *slog.Logger, metrics *observability.Metrics, cacheTTL time.Duration) *Pipeline {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Minute
	}
	return &Pipeline{
		hospitals: h,
		districts: d,
		centers:   c,
		exporter:  x,
		logger:    logger,
		metrics:   metrics,
		cache:     gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// CheckReadiness returns nil once hospitals are loaded, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.ready.Load() {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.loadErr != nil {
		return fmt.Errorf("hospital registry not loaded: %w", p.loadErr)
	}
	return errors.New("hospital registry has not been loaded yet")
}

// Run calls Load until the hospital stage succeeds, waiting retry between
// attempts. It returns nil after the first successful load, or the context
// error.
func (p *Pipeline) Run(ctx context.Context, retry time.Duration) error {
	for attempt := 1; ; attempt++ {
		err := p.Load(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("load failed, retrying", "attempt", attempt, "retry_in", retry, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-domain.After(retry):
		}
	}
}

// Load runs every stage. The hospital stage is required and its failure is
// returned; district and center failures are recorded and surfaced by the
// queries that need them.
func (p *Pipeline) Load(ctx context.Context) error {
	p.logger.Info("load started")
	st := &state{stageErrs: make(map[string]error)}

	hospitals, err := p.runHospitals(ctx)
	if err != nil {
		p.metrics.StageFailures.WithLabelValues(StageHospitals).Inc()
		p.mu.Lock()
		p.loadErr = err
		p.mu.Unlock()
		return err
	}
	st.hospitals = hospitals

	// Optional stages run side by side; one failing does not cancel the other.
	var (
		g         errgroup.Group
		districts []domain.District
		centers   []domain.PopulatedCenter
		distErr   error
		centerErr error
	)
	g.Go(func() error {
		districts, distErr = p.runDistricts(ctx)
		return distErr
	})
	g.Go(func() error {
		centers, centerErr = p.runCenters(ctx)
		return centerErr
	})
	if err := g.Wait(); err != nil {
		p.logger.Debug("optional stages finished with errors", "first_error", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if distErr != nil {
		p.recordStageError(st, StageDistricts, distErr)
	} else {
		p.join(st, districts)
		if err := p.export(ctx, st); err != nil {
			p.recordStageError(st, StageExport, err)
		}
	}
	if centerErr != nil {
		p.recordStageError(st, StageCenters, centerErr)
	} else {
		st.centers = centers
	}

	st.loadedAt = domain.Now().UTC()
	p.mu.Lock()
	p.state = st
	p.loadErr = nil
	p.mu.Unlock()
	p.cache.Flush()
	p.ready.Store(true)
	p.metrics.PipelineLoaded.Set(1)

	p.logger.Info("load finished",
		"hospitals", len(st.hospitals),
		"districts", len(st.districts),
		"centers", len(st.centers),
		"unmatched", st.unmatched,
		"failed_stages", len(st.stageErrs),
	)
	return nil
}

func (p *Pipeline) runHospitals(ctx context.Context) ([]domain.Hospital, error) {
	start := time.Now()
	hs, err := p.hospitals.LoadHospitals(ctx)
	p.metrics.StageDuration.WithLabelValues(StageHospitals).Observe(time.Since(start).Seconds())
	if err != nil {
		p.logger.Error("hospital stage failed", "error", err)
		return nil, &StageError{Stage: StageHospitals, Err: err}
	}
	if len(hs) == 0 {
		p.logger.Error("hospital stage failed", "error", ErrNoHospitals)
		return nil, &StageError{Stage: StageHospitals, Err: ErrNoHospitals}
	}
	p.metrics.HospitalsKept.Set(float64(len(hs)))
	return hs, nil
}

func (p *Pipeline) runDistricts(ctx context.Context) ([]domain.District, error) {
	if p.districts == nil {
		return nil, errors.New("no district source configured")
	}
	start := time.Now()
	ds, err := p.districts.LoadDistricts(ctx)
	p.metrics.StageDuration.WithLabelValues(StageDistricts).Observe(time.Since(start).Seconds())
	return ds, err
}

func (p *Pipeline) runCenters(ctx context.Context) ([]domain.PopulatedCenter, error) {
	if p.centers == nil {
		return nil, errors.New("no populated center source configured")
	}
	start := time.Now()
	cs, err := p.centers.LoadCenters(ctx)
	p.metrics.StageDuration.WithLabelValues(StageCenters).Observe(time.Since(start).Seconds())
	return cs, err
}

func (p *Pipeline) recordStageError(st *state, stage string, err error) {
	st.stageErrs[stage] = &StageError{Stage: stage, Err: err}
	p.metrics.StageFailures.WithLabelValues(stage).Inc()
	p.logger.Warn("optional stage failed", "stage", stage, "error", err)
}

func (p *Pipeline) snapshot() (*state, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state == nil {
		if p.loadErr != nil {
			return nil, p.loadErr
		}
		return nil, ErrNotLoaded
	}
	return p.state, nil
}

// StageErr returns the recorded error of an optional stage, if any.
func (p *Pipeline) StageErr(stage string) error {
	st, err := p.snapshot()
	if err != nil {
		return err
	}
	return st.stageErrs[stage]
}

// StageStatus reports "ok" or the error text of each stage.
func (p *Pipeline) StageStatus() map[string]string {
	out := map[string]string{
		StageHospitals: "pending",
		StageDistricts: "pending",
		StageCenters:   "pending",
	}
	st, err := p.snapshot()
	if err != nil {
		if !errors.Is(err, ErrNotLoaded) {
			out[StageHospitals] = err.Error()
		}
		return out
	}
	for _, s := range []string{StageHospitals, StageDistricts, StageCenters} {
		out[s] = "ok"
		if e := st.stageErrs[s]; e != nil {
			out[s] = e.Error()
		}
	}
	if p.exporter != nil {
		out[StageExport] = "ok"
		if e := st.stageErrs[StageExport]; e != nil {
			out[StageExport] = e.Error()
		}
	}
	return out
}

// LoadedAt is the time of the last successful load.
func (p *Pipeline) LoadedAt() time.Time {
	st, err := p.snapshot()
	if err != nil {
		return time.Time{}
	}
	return st.loadedAt
}
