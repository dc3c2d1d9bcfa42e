// Command validate runs phased integrity checks over the dashboard input
// files: the IPRESS workbook, the district layer and the populated center
// layer, and the coverage of the hospital to district join. It exits with
// status 1 when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -data-dir ../data -max-unmatched 0.05
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/excel"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/shapefile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory holding the input files (default DATA_DIRS)")
	maxUnmatched := flag.Float64("max-unmatched", 0.05, "largest accepted share of hospitals outside every district")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDirs = []string{*dataDir}
	}

	if code := run(context.Background(), os.Stdout, cfg, *maxUnmatched); code != 0 {
		os.Exit(code)
	}
}

// inputs holds what each loader returned. A nil slice means the load failed.
type inputs struct {
	workbook  excel.Result
	districts []domain.District
	centers   []domain.PopulatedCenter
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, maxUnmatched float64) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewUnregisteredMetrics()

	fmt.Fprintln(out, "=== IPRESS Input Integrity Validation ===")
	fmt.Fprintln(out)

	var in inputs
	phases := []*phase{
		validateWorkbook(ctx, cfg, logger, metrics, &in),
		validateCoordinates(&in),
		validateDistricts(ctx, cfg, logger, metrics, &in),
		validateCenters(ctx, cfg, logger, metrics, &in),
		validateJoin(&in, maxUnmatched),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d spreadsheet rows, %d hospitals, %d districts, %d populated centers\n",
		in.workbook.Rows, len(in.workbook.Hospitals), len(in.districts), len(in.centers))

	for _, p := range phases {
		if len(p.notes) == 0 && p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, n := range p.notes {
			fmt.Fprintf(out, "  %s\n", n)
		}
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Workbook ──
// Required columns are present and some rows survive the retention rules.

func validateWorkbook(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, in *inputs) *phase {
	p := &phase{name: "Phase 1: IPRESS workbook (columns, rows)"}

	res, err := excel.NewReader(cfg, logger, metrics).Read(ctx)
	if err != nil {
		p.errorf("read workbook: %v", err)
		return p
	}
	in.workbook = res

	p.notef("file %s, sheet %q", res.Path, res.Sheet)
	if res.Rows == 0 {
		p.errorf("no data rows")
	}
	if len(res.Hospitals) == 0 {
		p.errorf("no rows pass the retention rules")
	}
	for _, reason := range domain.RejectReasons {
		if n := res.Rejected[reason]; n > 0 {
			p.notef("rejected %-16s %d", reason, n)
		}
	}
	return p
}

// ── Phase 2: Coordinates ──
// Retained hospitals carry a usable position and a department.

func validateCoordinates(in *inputs) *phase {
	p := &phase{name: "Phase 2: Hospital coordinates"}
	if in.workbook.Header == nil {
		p.errorf("skipped: workbook not loaded")
		return p
	}

	sources := map[string]int{}
	seen := map[string]int{}
	for i, h := range in.workbook.Hospitals {
		sources[h.CoordSource]++
		if !domain.InPeru(h.Point) {
			p.errorf("hospital %d (%s): point %v outside Peru", i, h.Name, h.Point)
		}
		if domain.NormalizeName(h.Department) == "" {
			p.errorf("hospital %d (%s): missing department", i, h.Name)
		}
		if h.ID != "" {
			seen[h.ID]++
		}
	}
	p.notef("coordinates: %d WGS-84, %d UTM 18S", sources[domain.CoordWGS84], sources[domain.CoordUTM18S])

	dupes := 0
	for _, n := range seen {
		if n > 1 {
			dupes++
		}
	}
	if dupes > 0 {
		p.notef("%d facility code(s) appear more than once", dupes)
	}
	return p
}

// ── Phase 3: District layer ──
// Attributes resolve, UBIGEO codes are unique and every record has geometry.

func validateDistricts(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, in *inputs) *phase {
	p := &phase{name: "Phase 3: District layer (attributes, geometry)"}

	path, fields, records, err := shapefile.Attributes(cfg.DistrictsFile, cfg.DataDirs)
	if err != nil {
		p.errorf("open district layer: %v", err)
		return p
	}
	p.notef("file %s, fields %s", path, strings.Join(fields, ", "))

	districts, err := shapefile.NewDistrictReader(cfg.DistrictsFile, cfg.DataDirs, logger, metrics).LoadDistricts(ctx)
	if err != nil {
		p.errorf("load districts: %v", err)
		return p
	}
	in.districts = districts

	if len(districts) != records {
		p.errorf("layer has %d records, %d districts loaded", records, len(districts))
	}
	ubigeos := map[string]int{}
	for i, d := range districts {
		if d.Ubigeo == "" {
			p.errorf("district %d (%s): missing UBIGEO", i, d.Name)
		} else if n := ubigeos[d.Ubigeo]; n > 0 {
			p.errorf("district %d (%s): duplicate UBIGEO %s", i, d.Name, d.Ubigeo)
		}
		ubigeos[d.Ubigeo]++
		if len(d.Geometry) == 0 {
			p.errorf("district %d (%s): empty geometry", i, d.Name)
			continue
		}
		if !d.Geometry.Bound().Intersects(domain.PeruBound) {
			p.errorf("district %d (%s): geometry outside Peru", i, d.Name)
		}
	}
	return p
}

// ── Phase 4: Populated centers ──
// Centers resolve to points in Peru and carry a department for filtering.

func validateCenters(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, in *inputs) *phase {
	p := &phase{name: "Phase 4: Populated center layer"}

	centers, err := shapefile.NewCenterReader(cfg.CCPPFile, cfg.DataDirs, logger, metrics).LoadCenters(ctx)
	if err != nil {
		p.errorf("load populated centers: %v", err)
		return p
	}
	in.centers = centers
	if len(centers) == 0 {
		p.errorf("no populated centers")
	}

	perDept := map[string]int{}
	missing := 0
	for i, c := range centers {
		if !domain.InPeru(c.Point) {
			p.errorf("center %d (%s): point %v outside Peru", i, c.Name, c.Point)
		}
		if dept := domain.NormalizeName(c.Department); dept != "" {
			perDept[dept]++
		} else {
			missing++
		}
	}
	if missing > 0 {
		p.notef("%d center(s) without department are located through the district layer", missing)
	}
	for _, dept := range cfg.ProximityDepartments {
		if perDept[domain.NormalizeName(dept)] == 0 && missing == 0 {
			p.errorf("no populated centers in proximity department %s", dept)
		}
	}
	return p
}

// ── Phase 5: Join coverage ──
// Every hospital is counted once, and few fall outside the district layer.

func validateJoin(in *inputs, maxUnmatched float64) *phase {
	p := &phase{name: "Phase 5: Hospital to district join"}
	hospitals := in.workbook.Hospitals
	if len(hospitals) == 0 || len(in.districts) == 0 {
		p.errorf("skipped: hospitals or districts not loaded")
		return p
	}

	join := spatial.CountHospitalsByDistrict(in.districts, hospitals)
	total := 0
	for _, d := range join.Districts {
		total += d.Hospitals
	}
	if total+join.Unmatched != len(hospitals) {
		p.errorf("counted %d + %d unmatched, want %d hospitals", total, join.Unmatched, len(hospitals))
	}

	share := float64(join.Unmatched) / float64(len(hospitals))
	if share > maxUnmatched {
		p.errorf("%d of %d hospitals (%.1f%%) fall outside every district, limit %.1f%%",
			join.Unmatched, len(hospitals), share*100, maxUnmatched*100)
	}

	stats := spatial.DistrictStats(join.Districts)
	p.notef("districts with hospitals: %d, without: %d (%.1f%%)",
		stats.WithHospitals, stats.WithoutHospitals, stats.PercentWithout)

	var unmatched []string
	for _, h := range join.Hospitals {
		if h.LocateSource == domain.LocateUnmatched {
			unmatched = append(unmatched, h.Name)
		}
	}
	sort.Strings(unmatched)
	for _, name := range unmatched {
		p.notef("unmatched: %s", name)
	}
	return p
}
