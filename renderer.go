package mdbatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// filePermissions for written PDFs: rw-r--r--.
const filePermissions = 0o644

// defaultRenderTimeout bounds a single PDF generation.
const defaultRenderTimeout = 30 * time.Second

// htmlShell wraps Goldmark's fragment output in a complete HTML5
// document. The %s slots are CSS and body.
const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
<style>%s</style>
</head>
<body>
%s
</body>
</html>`

// Renderer is the bundled Converter implementation: Markdown to HTML via
// Goldmark, HTML to PDF via headless Chrome. One Renderer owns one
// browser; use a ConverterPool for parallel batches.
type Renderer struct {
	timeout     time.Duration
	mdPlain     goldmark.Markdown
	mdHighlight goldmark.Markdown
	pdf         *rodRenderer
}

// Compile-time interface implementation check.
var _ Converter = (*Renderer)(nil)

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithRenderTimeout sets the per-file PDF generation timeout.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithRenderTimeout(d time.Duration) RendererOption {
	if d <= 0 {
		panic("mdbatch: WithRenderTimeout duration must be positive")
	}
	return func(r *Renderer) { r.timeout = d }
}

// NewRenderer creates a Renderer with GFM extensions. The browser is
// launched lazily on first conversion.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{timeout: defaultRenderTimeout}
	for _, opt := range opts {
		opt(r)
	}

	base := []goldmark.Extender{
		extension.GFM,      // Tables, strikethrough, autolinks, task lists
		extension.Footnote, // [^1] footnotes
	}
	rendererOpts := goldmark.WithRendererOptions(
		html.WithHardWraps(), // Treat newlines as <br>
		html.WithXHTML(),     // Self-closing tags
	)

	r.mdPlain = goldmark.New(goldmark.WithExtensions(base...), rendererOpts)
	r.mdHighlight = goldmark.New(
		goldmark.WithExtensions(append(base,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true), // CSS classes keep the HTML small
				),
			),
		)...),
		rendererOpts,
	)

	r.pdf = newRodRenderer(r.timeout)
	return r
}

// Convert reads the markdown file, renders it to PDF, and writes the
// output artifact. The PDF is staged as <output>.tmp and renamed into
// place so an interrupted write leaves only a temp file for recovery
// cleanup, never a truncated PDF.
func (r *Renderer) Convert(ctx context.Context, doc Document) error {
	content, err := os.ReadFile(doc.InputPath) // #nosec G304 -- collected path
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReadMarkdown, err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyMarkdown, doc.InputPath)
	}

	htmlContent, err := r.toHTML(ctx, content, doc.Options)
	if err != nil {
		return err
	}

	pdfBytes, err := r.pdf.Render(ctx, htmlContent, doc.Options.PageSize)
	if err != nil {
		return err
	}

	tmpPath := doc.OutputPath + ".tmp"
	// #nosec G306 -- PDFs are meant to be readable
	if err := os.WriteFile(tmpPath, pdfBytes, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWritePDF, err)
	}
	if err := os.Rename(tmpPath, doc.OutputPath); err != nil {
		return fmt.Errorf("%w: %w", ErrWritePDF, err)
	}
	return nil
}

// toHTML converts markdown to a standalone HTML5 document. Goldmark has
// no native context support, so conversion runs in a goroutine and the
// select honors cancellation.
func (r *Renderer) toHTML(ctx context.Context, content []byte, opts ConvertOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	md := r.mdPlain
	if opts.CodeHighlighting {
		md = r.mdHighlight
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := md.Convert(content, &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}
		css := strings.TrimSpace(opts.CSS)
		done <- result{html: fmt.Sprintf(htmlShell, css, buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.html, res.err
	}
}

// Close releases browser resources.
func (r *Renderer) Close() error {
	if r.pdf != nil {
		return r.pdf.Close()
	}
	return nil
}
