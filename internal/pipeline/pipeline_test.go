package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/datafile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/pipeline"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/sample"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// --- mocks ---

type mockHospitals struct {
	hospitals []domain.Hospital
	err       error
}

func (m *mockHospitals) LoadHospitals(_ context.Context) ([]domain.Hospital, error) {
	return m.hospitals, m.err
}

// flakyHospitals fails until failures calls have been made.
type flakyHospitals struct {
	hospitals []domain.Hospital
	failures  int64
	err       error
	calls     atomic.Int64
}

func (m *flakyHospitals) LoadHospitals(_ context.Context) ([]domain.Hospital, error) {
	if m.calls.Add(1) <= m.failures {
		return nil, m.err
	}
	return m.hospitals, nil
}

type mockDistricts struct {
	districts []domain.District
	err       error
}

func (m *mockDistricts) LoadDistricts(_ context.Context) ([]domain.District, error) {
	return m.districts, m.err
}

type mockCenters struct {
	centers []domain.PopulatedCenter
	err     error
	calls   atomic.Int64
}

func (m *mockCenters) LoadCenters(_ context.Context) ([]domain.PopulatedCenter, error) {
	m.calls.Add(1)
	return m.centers, m.err
}

type mockExporter struct {
	exported []domain.DistrictCount
	err      error
}

func (m *mockExporter) ExportDistricts(_ context.Context, counts []domain.DistrictCount) error {
	if m.err != nil {
		return m.err
	}
	m.exported = append(m.exported, counts...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func newSamplePipeline(t *testing.T, x pipeline.Exporter) (*pipeline.Pipeline, *observability.Metrics) {
	t.Helper()
	ds := sample.New()
	metrics := newTestMetrics()
	p := pipeline.New(
		&mockHospitals{hospitals: ds.Hospitals()},
		&mockDistricts{districts: ds.Districts},
		&mockCenters{centers: ds.Centers},
		x, discardLogger(), metrics, time.Minute,
	)
	require.NoError(t, p.Load(context.Background()))
	return p, metrics
}

// --- tests ---

func TestPipeline_Load_HappyPath(t *testing.T) {
	p, metrics := newSamplePipeline(t, nil)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PipelineLoaded), 1e-9)
	assert.InDelta(t, 9.0, testutil.ToFloat64(metrics.HospitalsKept), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.JoinUnmatched), 1e-9)

	districts, err := p.Districts()
	require.NoError(t, err)
	got := make([]int, len(districts))
	for i, d := range districts {
		got[i] = d.Hospitals
	}
	assert.Equal(t, []int{3, 1, 1, 0, 1, 1, 0, 0, 1, 1, 0, 0}, got)

	assert.Equal(t, map[string]string{
		pipeline.StageHospitals: "ok",
		pipeline.StageDistricts: "ok",
		pipeline.StageCenters:   "ok",
	}, p.StageStatus())
}

func TestPipeline_NotReadyBeforeLoad(t *testing.T) {
	p := pipeline.New(&mockHospitals{}, nil, nil, nil, discardLogger(), newTestMetrics(), 0)

	require.Error(t, p.CheckReadiness(context.Background()))
	_, err := p.Summary("")
	assert.ErrorIs(t, err, pipeline.ErrNotLoaded)
	assert.Equal(t, "pending", p.StageStatus()[pipeline.StageHospitals])
	assert.True(t, p.LoadedAt().IsZero())
}

func TestPipeline_Load_HospitalStageRequired(t *testing.T) {
	tests := []struct {
		name    string
		source  *mockHospitals
		wantErr error
	}{
		{name: "source error", source: &mockHospitals{err: io.ErrUnexpectedEOF}, wantErr: io.ErrUnexpectedEOF},
		{name: "no rows kept", source: &mockHospitals{}, wantErr: pipeline.ErrNoHospitals},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := newTestMetrics()
			p := pipeline.New(tt.source, nil, nil, nil, discardLogger(), metrics, 0)

			err := p.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var se *pipeline.StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, pipeline.StageHospitals, se.Stage)

			assert.Error(t, p.CheckReadiness(context.Background()))
			assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.StageFailures.WithLabelValues(pipeline.StageHospitals)), 1e-9)
		})
	}
}

func TestPipeline_Load_MissingRegistryIsReported(t *testing.T) {
	_, notFound := datafile.Resolve("IPRESS.xlsx", []string{"/nonexistent"})
	require.Error(t, notFound)
	p := pipeline.New(&mockHospitals{err: notFound}, nil, nil, nil, discardLogger(), newTestMetrics(), 0)

	require.Error(t, p.Load(context.Background()))

	_, err := p.Summary("")
	require.Error(t, err)
	assert.NotErrorIs(t, err, pipeline.ErrNotLoaded)
	assert.ErrorIs(t, err, datafile.ErrNotFound)
	assert.Contains(t, err.Error(), "/nonexistent/IPRESS.xlsx")

	readiness := p.CheckReadiness(context.Background())
	require.Error(t, readiness)
	assert.ErrorIs(t, readiness, datafile.ErrNotFound)
	assert.Contains(t, p.StageStatus()[pipeline.StageHospitals], "IPRESS.xlsx not found")
}

func TestPipeline_Run_RetriesUntilRegistryAppears(t *testing.T) {
	fc := clockwork.NewFakeClock()
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })

	source := &flakyHospitals{
		hospitals: sample.New().Hospitals(),
		failures:  1,
		err:       &datafile.NotFoundError{Name: "IPRESS.xlsx", Tried: []string{"data/IPRESS.xlsx"}},
	}
	p := pipeline.New(source, nil, nil, nil, discardLogger(), newTestMetrics(), 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Minute) }()

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	_, err := p.Summary("")
	assert.ErrorIs(t, err, datafile.ErrNotFound)

	fc.Advance(time.Minute)
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), source.calls.Load())
	require.NoError(t, p.CheckReadiness(ctx))
	s, err := p.Summary("")
	require.NoError(t, err)
	assert.Equal(t, 9, s.TotalHospitals)
}

func TestPipeline_Run_StopsOnCancel(t *testing.T) {
	fc := clockwork.NewFakeClock()
	domain.SetClock(fc)
	t.Cleanup(func() { domain.SetClock(nil) })

	p := pipeline.New(&mockHospitals{err: io.ErrUnexpectedEOF}, nil, nil, nil, discardLogger(), newTestMetrics(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Hour) }()

	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPipeline_Load_OptionalStagesFail(t *testing.T) {
	ds := sample.New()
	metrics := newTestMetrics()
	shpErr := errors.New("dbf truncated")
	p := pipeline.New(
		&mockHospitals{hospitals: ds.Hospitals()},
		&mockDistricts{err: shpErr},
		&mockCenters{err: shpErr},
		nil, discardLogger(), metrics, 0,
	)

	require.NoError(t, p.Load(context.Background()))
	require.NoError(t, p.CheckReadiness(context.Background()))

	s, err := p.Summary("")
	require.NoError(t, err)
	assert.Equal(t, 9, s.TotalHospitals)

	_, err = p.Districts()
	assert.ErrorIs(t, err, shpErr)
	var se *pipeline.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pipeline.StageDistricts, se.Stage)

	_, err = p.Proximity(context.Background(), "LIMA", 0)
	assert.ErrorIs(t, err, shpErr)

	status := p.StageStatus()
	assert.Equal(t, "ok", status[pipeline.StageHospitals])
	assert.Contains(t, status[pipeline.StageDistricts], "dbf truncated")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.StageFailures.WithLabelValues(pipeline.StageCenters)), 1e-9)
}

func TestPipeline_Load_CancelledContext(t *testing.T) {
	ds := sample.New()
	p := pipeline.New(
		&mockHospitals{hospitals: ds.Hospitals()},
		&mockDistricts{districts: ds.Districts},
		&mockCenters{centers: ds.Centers},
		nil, discardLogger(), newTestMetrics(), 0,
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Load(ctx), context.Canceled)
}

func TestPipeline_Summary(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	p, _ := newSamplePipeline(t, nil)

	tests := []struct {
		dept          string
		wantHospitals int
		wantDepts     int
		wantDistricts int
	}{
		{dept: "", wantHospitals: 9, wantDepts: 3, wantDistricts: 7},
		{dept: "Todos", wantHospitals: 9, wantDepts: 3, wantDistricts: 7},
		{dept: "lima", wantHospitals: 5, wantDepts: 1, wantDistricts: 3},
		{dept: "Loreto", wantHospitals: 2, wantDepts: 1, wantDistricts: 2},
	}
	for _, tt := range tests {
		t.Run(tt.dept, func(t *testing.T) {
			s, err := p.Summary(tt.dept)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHospitals, s.TotalHospitals)
			assert.Equal(t, tt.wantDepts, s.Departments)
			assert.Equal(t, tt.wantDistricts, s.Districts)
			assert.Equal(t, fixed, s.GeneratedAt)
		})
	}

	_, err := p.Summary("AMAZONAS")
	assert.ErrorIs(t, err, pipeline.ErrUnknownDepartment)
	assert.Equal(t, fixed, p.LoadedAt())
}

func TestPipeline_DepartmentQueries(t *testing.T) {
	p, _ := newSamplePipeline(t, nil)

	depts, err := p.Departments()
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSCO", "LIMA", "LORETO"}, depts)

	counts, err := p.DepartmentCounts(2)
	require.NoError(t, err)
	assert.Equal(t, []domain.DepartmentCount{
		{Department: "LIMA", Hospitals: 5},
		{Department: "CUSCO", Hospitals: 2},
	}, counts)

	all, err := p.DepartmentCounts(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	hs, err := p.Hospitals("LORETO", 0)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "00010", hs[0].ID)
	assert.Equal(t, "160101", hs[0].DistrictUbigeo)
	assert.Equal(t, domain.LocateSpatial, hs[0].LocateSource)

	limited, err := p.Hospitals("", 4)
	require.NoError(t, err)
	assert.Len(t, limited, 4)

	_, err = p.Hospitals("TACNA", 0)
	assert.ErrorIs(t, err, pipeline.ErrUnknownDepartment)
}

func TestPipeline_DistrictQueries(t *testing.T) {
	p, _ := newSamplePipeline(t, nil)

	stats, err := p.DistrictStats()
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Districts)
	assert.Equal(t, 9, stats.TotalHospitals)
	assert.Equal(t, 7, stats.WithHospitals)
	assert.Equal(t, 5, stats.WithoutHospitals)
	assert.InDelta(t, 41.666, stats.PercentWithout, 1e-2)

	top, err := p.TopDistricts(3)
	require.NoError(t, err)
	require.Len(t, top.Rows, 3)
	assert.Equal(t, "150101", top.Rows[0].Ubigeo)
	assert.Equal(t, 3, top.Rows[0].Hospitals)
	assert.Equal(t, "BRENA", top.Rows[1].Name)
	assert.Equal(t, 5, top.Total)
	assert.Equal(t, 3, top.Max)

	unmatched, err := p.Unmatched()
	require.NoError(t, err)
	assert.Zero(t, unmatched)
}

func TestPipeline_Proximity(t *testing.T) {
	p, metrics := newSamplePipeline(t, nil)

	res, err := p.Proximity(context.Background(), "Lima", 0)
	require.NoError(t, err)
	assert.Equal(t, "LIMA", res.Department)
	assert.InDelta(t, spatial.DefaultRadius, res.Radius, 1e-9)

	got := make([]int, len(res.Centers))
	for i, c := range res.Centers {
		got[i] = c.NumHosp
	}
	assert.Equal(t, []int{2, 1, 0}, got)
	assert.Equal(t, "HUAYCAN ALTO", res.Isolated().Center.Name)
	assert.Equal(t, "LIMA", res.Concentrated().Center.Name)
	assert.InDelta(t, 1.0, res.Mean(), 1e-9)

	again, err := p.Proximity(context.Background(), "LIMA", spatial.DefaultRadius)
	require.NoError(t, err)
	assert.Same(t, res, again, "second call served from cache")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProximityAnalyses.WithLabelValues("LIMA", "success")), 1e-9)
}

func TestPipeline_Proximity_Errors(t *testing.T) {
	p, metrics := newSamplePipeline(t, nil)

	_, err := p.Proximity(context.Background(), "Todos", 0)
	assert.ErrorIs(t, err, pipeline.ErrUnknownDepartment)

	_, err = p.Proximity(context.Background(), "PUNO", 0)
	assert.ErrorIs(t, err, pipeline.ErrUnknownDepartment)
	assert.ErrorIs(t, err, spatial.ErrNoCenters)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ProximityAnalyses.WithLabelValues("unknown", "error")), 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Proximity(ctx, "LIMA", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Proximity_CentersWithoutDepartment(t *testing.T) {
	ds := sample.New()
	for i := range ds.Centers {
		ds.Centers[i].Department = ""
	}
	p := pipeline.New(
		&mockHospitals{hospitals: ds.Hospitals()},
		&mockDistricts{districts: ds.Districts},
		&mockCenters{centers: ds.Centers},
		nil, discardLogger(), newTestMetrics(), 0,
	)
	require.NoError(t, p.Load(context.Background()))

	res, err := p.Proximity(context.Background(), "LORETO", 0)
	require.NoError(t, err)
	require.Len(t, res.Centers, 2)
	assert.Equal(t, "IQUITOS", res.Concentrated().Center.Name)
	assert.Equal(t, 1, res.Max())
}

func TestPipeline_Proximity_UnknownDepartmentsShareOneSeries(t *testing.T) {
	p, metrics := newSamplePipeline(t, nil)

	for i := 0; i < 50; i++ {
		_, err := p.Proximity(context.Background(), fmt.Sprintf("junk%d", i), 0)
		require.ErrorIs(t, err, pipeline.ErrUnknownDepartment)
	}

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ProximityAnalyses))
	assert.InDelta(t, 50.0, testutil.ToFloat64(metrics.ProximityAnalyses.WithLabelValues("unknown", "error")), 1e-9)
}

func TestPipeline_Compare(t *testing.T) {
	p, _ := newSamplePipeline(t, nil)

	cmp, err := p.Compare(context.Background(), []string{"LIMA", "LORETO"}, 0)
	require.NoError(t, err)
	require.Len(t, cmp, 2)
	assert.Equal(t, "LIMA", cmp[0].Department)
	assert.InDelta(t, 1.0, cmp[0].Mean, 1e-9)
	assert.Equal(t, 2, cmp[0].Max)
	assert.Equal(t, "LORETO", cmp[1].Department)
	assert.InDelta(t, 0.5, cmp[1].Mean, 1e-9)
	assert.Equal(t, 1, cmp[1].Max)

	_, err = p.Compare(context.Background(), []string{"LIMA", "PUNO"}, 0)
	assert.ErrorIs(t, err, pipeline.ErrUnknownDepartment)
}

func TestPipeline_Export(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	x := &mockExporter{}
	p, metrics := newSamplePipeline(t, x)

	require.Len(t, x.exported, 12)
	assert.Equal(t, domain.DistrictCount{
		Ubigeo:      "150101",
		Name:        "LIMA",
		Department:  "LIMA",
		Hospitals:   3,
		GeneratedAt: fixed,
	}, x.exported[0])
	assert.InDelta(t, 12.0, testutil.ToFloat64(metrics.DistrictsExported), 1e-9)
	assert.Equal(t, "ok", p.StageStatus()[pipeline.StageExport])
}

func TestPipeline_ExportFailureIsRecorded(t *testing.T) {
	x := &mockExporter{err: errors.New("broker down")}
	p, metrics := newSamplePipeline(t, x)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.ErrorContains(t, p.StageErr(pipeline.StageExport), "broker down")
	assert.Contains(t, p.StageStatus()[pipeline.StageExport], "broker down")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.StageFailures.WithLabelValues(pipeline.StageExport)), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.DistrictsExported), 1e-9)

	_, err := p.Districts()
	assert.NoError(t, err, "district data stays available")
}

func TestPipeline_ReloadFlushesProximityCache(t *testing.T) {
	ds := sample.New()
	centers := &mockCenters{centers: ds.Centers}
	p := pipeline.New(
		&mockHospitals{hospitals: ds.Hospitals()},
		&mockDistricts{districts: ds.Districts},
		centers, nil, discardLogger(), newTestMetrics(), time.Hour,
	)
	require.NoError(t, p.Load(context.Background()))
	first, err := p.Proximity(context.Background(), "CUSCO", 0)
	require.NoError(t, err)

	require.NoError(t, p.Load(context.Background()))
	second, err := p.Proximity(context.Background(), "CUSCO", 0)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, first.Centers, second.Centers)
	assert.Equal(t, int64(2), centers.calls.Load())
}
