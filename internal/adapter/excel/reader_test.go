package excel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/datafile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/sample"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		DataDirs:               []string{dir},
		IPRESSFile:             "IPRESS.xlsx",
		HospitalClassification: domain.DefaultClassification,
	}
}

func TestReader_Read(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sample.WriteWorkbook(filepath.Join(dir, "IPRESS.xlsx"), "", sample.New().Facilities))

	metrics := observability.NewMetricsForTesting()
	r := NewReader(testConfig(dir), discardLogger(), metrics)

	res, err := r.Read(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sample.DefaultSheet, res.Sheet)
	assert.Equal(t, 14, res.Rows)
	require.Len(t, res.Hospitals, 9)
	assert.Equal(t, map[domain.RejectReason]int{
		domain.RejectInactive:       1,
		domain.RejectClassification: 1,
		domain.RejectMissingCoords:  1,
		domain.RejectZeroCoords:     1,
		domain.RejectOutOfRange:     1,
	}, res.Rejected)

	first := res.Hospitals[0]
	assert.Equal(t, "00001", first.ID)
	assert.Equal(t, "HOSPITAL NACIONAL ARZOBISPO LOAYZA", first.Name)
	assert.Equal(t, domain.CoordWGS84, first.CoordSource)
	assert.InDelta(t, -77.25, first.Lon(), 1e-9)

	utm := res.Hospitals[4]
	assert.Equal(t, "00005", utm.ID)
	assert.Equal(t, domain.CoordUTM18S, utm.CoordSource)
	assert.InDelta(t, -77.2, utm.Lon(), 1e-6)
	assert.InDelta(t, -12.4, utm.Lat(), 1e-6)

	assert.InDelta(t, 14.0, testutil.ToFloat64(metrics.RowsRead.WithLabelValues("ipress")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsRejected.WithLabelValues("inactive")), 1e-9)
}

func TestReader_LoadHospitals_NoKeyword(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sample.WriteWorkbook(filepath.Join(dir, "IPRESS.xlsx"), "", sample.New().Facilities))

	cfg := testConfig(dir)
	cfg.HospitalClassification = ""
	hs, err := NewReader(cfg, discardLogger(), observability.NewMetricsForTesting()).LoadHospitals(context.Background())
	require.NoError(t, err)
	assert.Len(t, hs, 10)
}

func TestReader_NamedSheet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sample.WriteWorkbook(filepath.Join(dir, "IPRESS.xlsx"), "Hoja1", sample.New().Facilities))

	cfg := testConfig(dir)
	cfg.IPRESSSheet = "hoja1"
	res, err := NewReader(cfg, discardLogger(), observability.NewMetricsForTesting()).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hoja1", res.Sheet)

	cfg.IPRESSSheet = "Other"
	_, err = NewReader(cfg, discardLogger(), observability.NewMetricsForTesting()).Read(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Other" not found`)
}

func TestReader_HeaderBelowTitleRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IPRESS.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "Registro Nacional de IPRESS"))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &sample.WorkbookHeader))
	row := sample.New().Facilities[0].Cells()
	require.NoError(t, f.SetSheetRow(sheet, "A4", &row))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := NewReader(testConfig(dir), discardLogger(), observability.NewMetricsForTesting()).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Len(t, res.Hospitals, 1)
}

func TestReader_NumericCoordinatesIgnoreDisplayFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IPRESS.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &sample.WorkbookHeader))
	row := sample.New().Facilities[0].Cells()
	require.NoError(t, f.SetSheetRow(sheet, "A2", &row))
	// NORTE and ESTE as numbers shown with no decimals.
	require.NoError(t, f.SetCellValue(sheet, "K2", -12.0464))
	require.NoError(t, f.SetCellValue(sheet, "L2", -77.0428))
	style, err := f.NewStyle(&excelize.Style{NumFmt: 1})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "K2", "L2", style))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := NewReader(testConfig(dir), discardLogger(), observability.NewMetricsForTesting()).Read(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Hospitals, 1)
	assert.InDelta(t, -12.0464, res.Hospitals[0].Lat(), 1e-9)
	assert.InDelta(t, -77.0428, res.Hospitals[0].Lon(), 1e-9)
}

func TestReader_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IPRESS.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"Nombre del establecimiento", "Estado"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"HOSPITAL", "ACTIVO"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := NewReader(testConfig(dir), discardLogger(), observability.NewMetricsForTesting()).Read(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))
}

func TestReader_FileNotFound(t *testing.T) {
	_, err := NewReader(testConfig(t.TempDir()), discardLogger(), observability.NewMetricsForTesting()).
		LoadHospitals(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, datafile.ErrNotFound))
}

func TestReader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, sample.WriteWorkbook(filepath.Join(dir, "IPRESS.xlsx"), "", sample.New().Facilities))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReader(testConfig(dir), discardLogger(), observability.NewMetricsForTesting()).Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
