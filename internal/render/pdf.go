package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

var ErrRendererUnavailable = errors.New("pdf renderer unavailable")

type PDFRenderer interface {
	RenderPDF(ctx context.Context, html []byte, paper string) ([]byte, error)
}

// PaperInches returns width and height for a paper size, A4 by default.
func PaperInches(paper string) (w, h float64) {
	if strings.EqualFold(paper, models.PaperLetter) {
		return 8.5, 11
	}
	// A4: 210mm x 297mm
	return 8.27, 11.69
}

type ChromedpRenderer struct {
	ExecPath string
	Timeout  time.Duration
}

func NewChromedpRenderer(execPath string) *ChromedpRenderer {
	return &ChromedpRenderer{ExecPath: execPath, Timeout: 60 * time.Second}
}

func (r *ChromedpRenderer) RenderPDF(ctx context.Context, html []byte, paper string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancelRun := context.WithTimeout(cctx, timeout)
	defer cancelRun()

	tmpDir, err := os.MkdirTemp("", "cv-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, html, 0o600); err != nil {
		return nil, err
	}

	w, h := PaperInches(paper)
	var pdf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(w).
				WithPaperHeight(h).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrRendererUnavailable
		}
		return nil, err
	}
	return pdf, nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func asciiName(s string) string {
	s, _, _ = transform.String(stripMarks, s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == ' ':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// FileName is the download name of an exported CV: First_Last_CV.pdf.
func FileName(cv *models.CV) string {
	var parts []string
	for _, p := range []string{cv.FirstName, cv.LastName} {
		if a := asciiName(p); a != "" {
			parts = append(parts, a)
		}
	}
	if len(parts) == 0 {
		return "CV.pdf"
	}
	return strings.Join(parts, "_") + "_CV.pdf"
}
