// Command course-plot renders a parsed course's interpolated polyline and
// tagged checkpoints as a standalone HTML chart, for visually sanity
// checking a GPX file before it's uploaded to the live store.
//
// Usage:
//
//	go run ./cmd/tools/course-plot -gpx course.gpx -out course.html
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/racetrack/gpscore/internal/course"
	"github.com/racetrack/gpscore/internal/security"
	"github.com/racetrack/gpscore/internal/version"
)

func main() {
	gpxPath := flag.String("gpx", "", "path to a GPX file (required)")
	outPath := flag.String("out", "course.html", "path to write the rendered HTML chart")
	interval := flag.Float64("interval", 100, "interpolation interval in meters")
	cpInterval := flag.Float64("cp-interval", 0, "checkpoint n is the first waypoint at or beyond n*cp-interval meters from the start (0 = every waypoint)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("gpscore-course-plot v%s (git SHA: %s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *gpxPath == "" {
		log.Fatal("Error: -gpx flag is required")
	}

	if err := security.ValidateExportPath(*outPath); err != nil {
		log.Fatalf("refusing to write chart: %v", err)
	}

	gpxBytes, err := os.ReadFile(*gpxPath)
	if err != nil {
		log.Fatalf("reading %s: %v", *gpxPath, err)
	}

	crs, err := course.Parse("course-plot", "course-plot", gpxBytes, course.Options{
		IntervalMeters:             *interval,
		CheckpointDistanceInterval: *cpInterval,
	})
	if err != nil {
		log.Fatalf("parsing course: %v", err)
	}

	log.Printf("course: %d points, %.1f m total distance", len(crs.Points), crs.TotalDistance)

	if err := renderChart(crs, *outPath); err != nil {
		log.Fatalf("rendering chart: %v", err)
	}
	log.Printf("wrote %s", *outPath)
}

func renderChart(crs *course.Course, outPath string) error {
	route := make([]opts.ScatterData, 0, len(crs.Points))
	checkpoints := make([]opts.ScatterData, 0)
	for _, p := range crs.Points {
		route = append(route, opts.ScatterData{Value: []interface{}{p.Lon, p.Lat}})
		if p.Type == course.PointCheckpoint || p.Type == course.PointStart || p.Type == course.PointFinish {
			label := ""
			if p.CpId != nil {
				label = *p.CpId
			}
			checkpoints = append(checkpoints, opts.ScatterData{
				Value:  []interface{}{p.Lon, p.Lat},
				Name:   label,
				Symbol: "diamond",
			})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Course Preview", Theme: "dark", Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Course Preview",
			Subtitle: fmt.Sprintf("%d points, %.1f m total", len(crs.Points), crs.TotalDistance),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude"}),
	)
	scatter.AddSeries("route", route, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("checkpoints", checkpoints, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer f.Close()

	return scatter.Render(f)
}
