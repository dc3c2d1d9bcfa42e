package sample

import (
	"fmt"
	"os"
	"path/filepath"
)

// File names the service looks for by default.
const (
	WorkbookFile  = "IPRESS.xlsx"
	DistrictsFile = "v_distritos_2023.shp"
	CentersFile   = "CCPP_IGN100K.shp"
)

// WriteFiles writes the workbook and both shapefiles into dir under the
// default file names and returns the paths written.
func (ds Dataset) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	workbook := filepath.Join(dir, WorkbookFile)
	districts := filepath.Join(dir, DistrictsFile)
	centers := filepath.Join(dir, CentersFile)

	if err := WriteWorkbook(workbook, DefaultSheet, ds.Facilities); err != nil {
		return nil, fmt.Errorf("write %s: %w", workbook, err)
	}
	if err := WriteDistricts(districts, ds.Districts); err != nil {
		return nil, fmt.Errorf("write %s: %w", districts, err)
	}
	if err := WriteCenters(centers, ds.Centers); err != nil {
		return nil, fmt.Errorf("write %s: %w", centers, err)
	}
	return []string{workbook, districts, centers}, nil
}
