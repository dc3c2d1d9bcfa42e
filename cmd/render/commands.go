package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/excel"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/shapefile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/domain"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/pipeline"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/render"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/spatial"
)

type options struct {
	out         string
	radius      float64
	departments []string
	top         int
	markers     int
}

// job renders a group of artifacts from a loaded pipeline.
type job func(ctx context.Context, p *pipeline.Pipeline, o *options, logger *slog.Logger) error

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "render",
		Short:         "Render dashboard maps, charts and GeoJSON layers to files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.out, "out", "out", "output directory")
	root.PersistentFlags().Float64Var(&o.radius, "radius", 0, "proximity buffer in metres (default BUFFER_METERS)")
	root.PersistentFlags().StringSliceVar(&o.departments, "departments", nil, "departments for the proximity maps (default PROXIMITY_DEPARTMENTS)")
	root.PersistentFlags().IntVar(&o.top, "top", 10, "departments in the bar chart")
	root.PersistentFlags().IntVar(&o.markers, "markers", 0, "hospital markers on the national map (default MARKER_LIMIT)")

	root.AddCommand(
		newJobCmd("maps", "Render the static district maps and the national map", o, renderMaps),
		newJobCmd("charts", "Render the hospitals per department chart", o, renderCharts),
		newJobCmd("proximity", "Render the populated center proximity maps", o, renderProximity),
		newJobCmd("all", "Render every artifact", o, renderMaps, renderCharts, renderProximity),
	)
	return root
}

func newJobCmd(use, short string, o *options, jobs ...job) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, o, jobs)
		},
	}
}

func run(ctx context.Context, o *options, jobs []job) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewUnregisteredMetrics()

	if o.radius <= 0 {
		o.radius = cfg.BufferMeters
	}
	if len(o.departments) == 0 {
		o.departments = cfg.ProximityDepartments
	}
	if o.markers <= 0 {
		o.markers = cfg.MarkerLimit
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p := pipeline.New(
		excel.NewReader(cfg, logger, metrics),
		shapefile.NewDistrictReader(cfg.DistrictsFile, cfg.DataDirs, logger, metrics),
		shapefile.NewCenterReader(cfg.CCPPFile, cfg.DataDirs, logger, metrics),
		nil, logger, metrics, cfg.CacheTTL,
	)
	if err := p.Load(ctx); err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	for _, j := range jobs {
		if err := j(ctx, p, o, logger); err != nil {
			return err
		}
	}
	return nil
}

func renderMaps(_ context.Context, p *pipeline.Pipeline, o *options, logger *slog.Logger) error {
	hs, err := p.Hospitals(domain.AllDepartments, o.markers)
	if err != nil {
		return err
	}
	if err := writeFile(o.out, "hospitales.html", logger, func(w io.Writer) error {
		return render.WritePage(w, render.NationalPage(hs, o.markers))
	}); err != nil {
		return err
	}
	if err := writeFile(o.out, "hospitales.geojson", logger, func(w io.Writer) error {
		return writeGeoJSON(w, render.HospitalsGeoJSON(hs, o.markers))
	}); err != nil {
		return err
	}

	districts, err := p.Districts()
	if err != nil {
		return err
	}
	maps := []struct {
		name string
		draw func(io.Writer, []domain.District, render.MapOptions) error
	}{
		{"mapa_coropletico.png", render.Choropleth},
		{"mapa_distritos_sin_hospitales.png", render.ZeroHospitalsMap},
		{"mapa_top10_distritos.png", render.Top10Map},
	}
	for _, m := range maps {
		if err := writeFile(o.out, m.name, logger, func(w io.Writer) error {
			return m.draw(w, districts, render.MapOptions{})
		}); err != nil {
			return err
		}
	}
	return writeFile(o.out, "distritos.geojson", logger, func(w io.Writer) error {
		return writeGeoJSON(w, render.DistrictsGeoJSON(districts))
	})
}

func renderCharts(_ context.Context, p *pipeline.Pipeline, o *options, logger *slog.Logger) error {
	counts, err := p.DepartmentCounts(o.top)
	if err != nil {
		return err
	}
	return writeFile(o.out, "hospitales_por_departamento.png", logger, func(w io.Writer) error {
		return render.DepartmentBar(w, counts, o.top)
	})
}

func renderProximity(ctx context.Context, p *pipeline.Pipeline, o *options, logger *slog.Logger) error {
	kinds := []spatial.Kind{spatial.KindConcentrated, spatial.KindIsolated}
	for _, dept := range o.departments {
		res, err := p.Proximity(ctx, dept, o.radius)
		if err != nil {
			return err
		}
		slug := strings.ToLower(strings.ReplaceAll(res.Department, " ", "_"))
		for _, kind := range kinds {
			base := fmt.Sprintf("proximidad_%s_%s", slug, kind)
			if err := writeFile(o.out, base+".html", logger, func(w io.Writer) error {
				return render.WritePage(w, render.ProximityPage(res, kind))
			}); err != nil {
				return err
			}
			if err := writeFile(o.out, base+".geojson", logger, func(w io.Writer) error {
				return writeGeoJSON(w, render.ProximityGeoJSON(res, kind))
			}); err != nil {
				return err
			}
		}
	}

	cmp, err := p.Compare(ctx, o.departments, o.radius)
	if err != nil {
		return err
	}
	return writeFile(o.out, "comparacion_proximidad.json", logger, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	})
}

func writeGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	raw, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	_, err = w.Write(raw)
	return err
}

// writeFile creates dir/name and removes it again if fn fails.
func writeFile(dir, name string, logger *slog.Logger, fn func(io.Writer) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	logger.Info("artifact written", "path", path)
	return nil
}
