// Package report renders final reports as standalone styled HTML documents.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// FileName is the name of every exported report document.
const FileName = "report.html"

// Footer is the attribution line at the bottom of every document.
const Footer = "Generated by AI Data Analysis Assistant"

var documentTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
        h1 { color: #2c3e50; }
        h2 { color: #3498db; border-bottom: 1px solid #eee; padding-bottom: 5px; }
        h3 { color: #2980b9; }
        li { margin-bottom: 5px; }
        .footer { margin-top: 30px; border-top: 1px solid #eee; padding-top: 10px; font-size: 0.8em; color: #7f8c8d; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    {{.Body}}
    <div class="footer">
        <p>{{.Footer}}</p>
    </div>
</body>
</html>
`))

// Exporter writes report documents below a base directory.
type Exporter struct {
	dir      string
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{
		dir:      dir,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
	}
}

// Title returns the document title for a project.
func Title(projectName string) string {
	return projectName + " - Analysis Report"
}

// Render converts Markdown to a complete HTML document. The converted body
// is sanitized, so raw HTML in the Markdown cannot inject scripts.
func (x *Exporter) Render(projectName, markdown string) ([]byte, error) {
	var body bytes.Buffer
	if err := x.markdown.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	safe := x.policy.SanitizeBytes(body.Bytes())

	var doc bytes.Buffer
	err := documentTemplate.Execute(&doc, map[string]any{
		"Title":  Title(projectName),
		"Body":   template.HTML(safe),
		"Footer": Footer,
	})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return doc.Bytes(), nil
}

// Export renders the report and writes it to <dir>/<scope>/report.html,
// returning the absolute path.
func (x *Exporter) Export(scope, projectName, markdown string) (string, error) {
	doc, err := x.Render(projectName, markdown)
	if err != nil {
		return "", err
	}

	dir := x.dir
	if seg := cleanScope(scope); seg != "" {
		dir = filepath.Join(dir, seg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

var unsafeScope = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func cleanScope(scope string) string {
	seg := unsafeScope.ReplaceAllString(scope, "_")
	if seg == "." || seg == ".." {
		return ""
	}
	return seg
}
