// Command genmock writes the sample IPRESS workbook and the district and
// populated center shapefiles, plus a JSON fixture of the expected district
// counts. It runs the real parsing and join code so the fixture matches what
// the dashboard computes from the files.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -expected data/mock/district_counts.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/pipeline"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/sample"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the workbook and shapefiles")
	expected := flag.String("expected", "", "optional output path for the expected district counts")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Set a fixed clock for reproducible GeneratedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.September, 12, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	ds := sample.New()
	paths, err := ds.WriteFiles(*out)
	if err != nil {
		return err
	}
	for _, p := range paths {
		log.Printf("wrote %s", p)
	}

	hospitals := ds.Hospitals()
	join := spatial.CountHospitalsByDistrict(ds.Districts, hospitals)
	log.Printf("facilities: %d rows, %d hospitals kept", len(ds.Facilities), len(hospitals))
	log.Printf("districts: %d, unmatched hospitals: %d", len(join.Districts), join.Unmatched)

	stats := spatial.DistrictStats(join.Districts)
	log.Printf("districts with hospitals: %d, without: %d (%.1f%%)",
		stats.WithHospitals, stats.WithoutHospitals, stats.PercentWithout)

	if *expected == "" {
		return nil
	}
	if err := writeJSON(*expected, pipeline.DistrictCounts(join.Districts)); err != nil {
		return fmt.Errorf("writing expected counts: %w", err)
	}
	log.Printf("wrote expected counts: %s", *expected)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
