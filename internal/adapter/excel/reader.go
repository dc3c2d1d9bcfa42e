// Package excel reads the IPRESS facility registry from an .xlsx workbook.
package excel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/datafile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
)

// ErrMissingColumns is returned when no header row carries the required columns.
var ErrMissingColumns = errors.New("spreadsheet is missing required columns")

// headerSearchRows bounds how far down the sheet the header row may sit.
const headerSearchRows = 10

// Result is the outcome of reading the workbook.
type Result struct {
	Path      string
	Sheet     string
	Header    domain.Header
	Rows      int
	Hospitals []domain.Hospital
	Rejected  map[domain.RejectReason]int
}

// Reader loads hospitals from the configured workbook.
// It implements pipeline.HospitalSource.
type Reader struct {
	file    string
	dirs    []string
	sheet   string
	rules   domain.FilterRules
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReader creates a Reader for IPRESS_FILE looked up in DATA_DIRS.
func NewReader(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{
		file:    cfg.IPRESSFile,
		dirs:    cfg.DataDirs,
		sheet:   cfg.IPRESSSheet,
		rules:   domain.FilterRules{Classification: cfg.HospitalClassification},
		logger:  logger,
		metrics: metrics,
	}
}

// LoadHospitals returns the hospitals that pass the retention rules.
func (r *Reader) LoadHospitals(ctx context.Context) ([]domain.Hospital, error) {
	res, err := r.Read(ctx)
	if err != nil {
		return nil, err
	}
	return res.Hospitals, nil
}

// Read parses the workbook and reports per-reason rejection counts.
func (r *Reader) Read(ctx context.Context) (Result, error) {
	path, err := datafile.Resolve(r.file, r.dirs)
	if err != nil {
		return Result{}, fmt.Errorf("resolve ipress workbook: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("open ipress workbook %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("close ipress workbook failed", "path", path, "error", err)
		}
	}()

	sheet, err := pickSheet(f, r.sheet)
	if err != nil {
		return Result{}, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	res := Result{Path: path, Sheet: sheet, Rejected: make(map[domain.RejectReason]int)}
	scanned := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return Result{}, fmt.Errorf("read row %d of %q: %w", scanned+1, sheet, err)
		}
		scanned++

		if res.Header == nil {
			if h := domain.NewHeader(cells); len(h.Missing()) == 0 {
				res.Header = h
			} else if scanned >= headerSearchRows {
				return Result{}, fmt.Errorf("sheet %q: %w: %s", sheet, ErrMissingColumns, strings.Join(h.Missing(), ", "))
			}
			continue
		}
		if isBlank(cells) {
			continue
		}

		res.Rows++
		h, reason := domain.FilterHospital(domain.ParseHospitalRow(res.Header, cells), r.rules)
		if reason != domain.RejectNone {
			res.Rejected[reason]++
			r.metrics.RowsRejected.WithLabelValues(string(reason)).Inc()
			r.logger.Debug("ipress row rejected", "row", scanned, "reason", reason, "name", h.Name)
			continue
		}
		res.Hospitals = append(res.Hospitals, h)
	}
	if err := rows.Error(); err != nil {
		return Result{}, fmt.Errorf("iterate sheet %q: %w", sheet, err)
	}
	if res.Header == nil {
		return Result{}, fmt.Errorf("sheet %q: %w: no header row", sheet, ErrMissingColumns)
	}

	r.metrics.RowsRead.WithLabelValues("ipress").Add(float64(res.Rows))
	r.logger.Info("ipress workbook loaded",
		"path", path,
		"sheet", sheet,
		"rows", res.Rows,
		"kept", len(res.Hospitals),
		"rejected", res.Rows-len(res.Hospitals),
	)
	return res, nil
}

// pickSheet returns want when set, otherwise the first sheet.
func pickSheet(f *excelize.File, want string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	if want == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s, want) {
			return s, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found (have %s)", want, strings.Join(sheets, ", "))
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
