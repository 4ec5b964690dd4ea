package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/resume"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testResume(t *testing.T) resume.Resume {
	t.Helper()
	r, err := resume.Parse([]byte(`{
		"basics": {"name": "Lucía Gómez", "label": "Fullstack Developer", "email": "lucia@example.com",
			"location": {"city": "Mendoza", "region": "AR"},
			"profiles": [{"network": "GitHub", "username": "lgomez"}]},
		"work": [{"name": "Acme", "position": "Developer", "startDate": "2021-03", "highlights": ["Cut p95 latency <50ms"]}],
		"skills": [{"name": "Backend", "keywords": ["Go", "PostgreSQL"]}],
		"meta": {"language": "en"}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return r
}

// fakeEngine records the HTML and returns canned bytes.
type fakeEngine struct {
	html []byte
	out  []byte
	err  error
	wait bool
}

func (f *fakeEngine) PrintPDF(ctx context.Context, html []byte) ([]byte, error) {
	f.html = html
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.out, f.err
}

func TestHTML_RendersSections(t *testing.T) {
	html, err := HTML(testResume(t))
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	s := string(html)
	for _, want := range []string{
		"<h1>Lucía Gómez</h1>",
		"Fullstack Developer",
		"Mendoza, AR",
		"GitHub: lgomez",
		"Experience",
		"2021-03 – Present",
		"Cut p95 latency &lt;50ms",
		"Go, PostgreSQL",
		`lang="en"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("HTML lacks %q", want)
		}
	}
	if strings.Contains(s, "Projects") {
		t.Error("empty sections should be omitted")
	}
}

func TestHTML_DefaultsToSpanishHeadings(t *testing.T) {
	r := testResume(t)
	delete(r, "meta")
	html, err := HTML(r)
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(string(html), "Experiencia") || !strings.Contains(string(html), "Actualidad") {
		t.Error("expected Spanish headings by default")
	}
}

func TestRenderer_WritesNamedFile(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{out: []byte("%PDF-1.7 fake")}
	r := NewRenderer(engine, filepath.Join(dir, "output"), time.Second, discardLogger())

	path, err := r.Render(context.Background(), testResume(t), "Acme S.A.")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if filepath.Base(path) != "CV-lucia-gomez-acme-sa.pdf" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "%PDF-1.7 fake" {
		t.Errorf("file contents = %q, %v", data, err)
	}
	if !strings.Contains(string(engine.html), "Lucía Gómez") {
		t.Error("engine did not receive the rendered HTML")
	}
}

func TestRenderer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
	}{
		{"engine error", &fakeEngine{err: errors.New("chrome not found")}},
		{"empty output", &fakeEngine{out: nil}},
		{"timeout", &fakeEngine{wait: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			r := NewRenderer(tt.engine, dir, 20*time.Millisecond, discardLogger())
			if _, err := r.Render(context.Background(), testResume(t), "Acme"); err == nil {
				t.Fatal("expected error")
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("no file should be written, found %d", len(entries))
			}
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name, target, want string
	}{
		{"Lucía Gómez", "Acme Corp", "CV-lucia-gomez-acme-corp.pdf"},
		{"Lucía Gómez", "", "CV-lucia-gomez-general.pdf"},
		{"", "Ñandú Tech!!", "CV-candidate-nandu-tech.pdf"},
		{"A", strings.Repeat("long name ", 10), "CV-a-long-name-long-name-long-name-long-name-long-name.pdf"},
	}
	for _, tt := range tests {
		if got := FileName(tt.name, tt.target); got != tt.want {
			t.Errorf("FileName(%q, %q) = %q, want %q", tt.name, tt.target, got, tt.want)
		}
	}
}
