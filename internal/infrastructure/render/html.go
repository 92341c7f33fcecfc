package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

// LatestFile is rewritten on every render alongside the dated copy.
const LatestFile = "index.html"

type pageData struct {
	Report    domain.Report
	ModeLabel string
	Generated string
	Matched   int
}

// HTMLRenderer writes a self-contained HTML page per report.
type HTMLRenderer struct {
	dir    string
	loc    *time.Location
	logger *slog.Logger
}

var _ ports.Renderer = (*HTMLRenderer)(nil)

// NewHTMLRenderer stores pages under dir, timestamps shown in loc.
func NewHTMLRenderer(dir string, loc *time.Location, logger *slog.Logger) *HTMLRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &HTMLRenderer{dir: dir, loc: loc, logger: logger}
}

// Render writes <dir>/<date>/<time>.html and refreshes <dir>/index.html.
func (r *HTMLRenderer) Render(ctx context.Context, report domain.Report) error {
	page, err := RenderHTML(report, r.loc)
	if err != nil {
		return err
	}

	generated := report.GeneratedAt.In(r.loc)
	dated := filepath.Join(r.dir, generated.Format("2006-01-02"), generated.Format("15-04-05")+".html")
	for _, path := range []string{dated, filepath.Join(r.dir, LatestFile)} {
		if err := writeFileAtomic(path, page); err != nil {
			return err
		}
	}

	if r.logger != nil {
		r.logger.Info("report page written", "path", dated, "bytes", len(page))
	}
	return nil
}

// RenderHTML executes the page template.
func RenderHTML(report domain.Report, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := pageData{
		Report:    report,
		ModeLabel: ModeLabel(report.Mode),
		Generated: report.GeneratedAt.In(loc).Format("01-02 15:04"),
		Matched:   report.Data.MatchedCount(),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

// ModeLabel is the human name of a window mode.
func ModeLabel(mode domain.WindowMode) string {
	switch mode {
	case domain.ModeCurrent:
		return "Current ranking"
	case domain.ModeIncremental:
		return "Incremental"
	case domain.ModeDaily:
		return "Daily summary"
	default:
		return "Realtime analysis"
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
