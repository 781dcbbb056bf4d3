package report

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"join": strings.Join,
	"pct":  func(v float64) string { return fmt.Sprintf("%.2f%%", 100*v) },
	"sub1": func(v float64) float64 { return 1 - v },
}).ParseFS(templateFS, "templates/report.html.tmpl"))

// ImportancePlotFeatures caps the dot chart.
const ImportancePlotFeatures = 30

type page struct {
	Report
	CVPlot         template.URL
	ImportancePlot template.URL
}

// RenderHTML writes the report as a self-contained HTML document. Plots that
// cannot be drawn are left out and logged to logger, or to slog.Default when
// logger is nil.
func RenderHTML(w io.Writer, r Report, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	pg := page{Report: r}
	if len(r.CV) > 0 {
		png, err := CVPlot(r.CV)
		if err != nil {
			logger.Warn("cv plot skipped", "error", err)
		} else {
			pg.CVPlot = dataURI(png)
		}
	}
	if len(r.Importance) > 0 {
		png, err := ImportancePlot(r.Importance, ImportancePlotFeatures)
		if err != nil {
			logger.Warn("importance plot skipped", "error", err)
		} else {
			pg.ImportancePlot = dataURI(png)
		}
	}
	if err := reportTemplate.Execute(w, pg); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

func dataURI(png []byte) template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}
