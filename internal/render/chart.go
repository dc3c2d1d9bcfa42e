package render

import (
	"errors"
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
)

// DepartmentChartTitle heads the department bar chart.
const DepartmentChartTitle = "Top departamentos por número de hospitales"

// ErrNoCounts is returned when there is nothing to chart.
var ErrNoCounts = errors.New("no department counts to chart")

const (
	barWidth   = 48
	barSpacing = 16
)

func barStyle() chart.Style {
	return chart.Style{
		FillColor:   drawing.ColorFromHex("60a5fa"),
		StrokeColor: drawing.ColorFromHex("2563eb"),
		StrokeWidth: 1,
	}
}

// DepartmentBar writes a PNG bar chart of the top departments by hospital
// count. top <= 0 charts every department.
func DepartmentBar(w io.Writer, counts []domain.DepartmentCount, top int) error {
	counts = domain.TopDepartments(counts, top)
	if len(counts) == 0 {
		return ErrNoCounts
	}

	bars := make([]chart.Value, len(counts))
	maxCount := 0
	for i, c := range counts {
		bars[i] = chart.Value{Label: c.Department, Value: float64(c.Hospitals), Style: barStyle()}
		if c.Hospitals > maxCount {
			maxCount = c.Hospitals
		}
	}

	width := len(counts)*(barWidth+barSpacing) + 160
	if width < 640 {
		width = 640
	}
	bc := chart.BarChart{
		Title:      DepartmentChartTitle,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Width:      width,
		Height:     480,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Name:           "Hospitales",
			Range:          &chart.ContinuousRange{Min: 0, Max: float64(maxCount) * 1.1},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		Bars: bars,
	}
	if maxCount == 0 {
		bc.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render department chart: %w", err)
	}
	return nil
}
