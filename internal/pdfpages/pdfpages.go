// Package pdfpages renders uploaded case documents into per-page PNG images
// for vision extraction. PDF rendering shells out to pdftoppm
// (poppler-utils); image uploads pass through unchanged.
package pdfpages

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// IsPDF reports whether the path looks like a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// IsImage reports whether the path is a directly usable page image.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// CollectImages turns a set of uploaded documents into a flat, ordered list
// of page images under outDir. PDFs are rendered page by page; image files
// are copied through with the same sequential naming. Page numbering is
// cumulative across inputs so multi-document cases keep their order.
func CollectImages(ctx context.Context, inputs []string, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	pageOffset := 0
	for _, input := range inputs {
		switch {
		case IsPDF(input):
			n, err := ExtractImages(ctx, input, outDir, pageOffset)
			if err != nil {
				return nil, fmt.Errorf("failed to render %s: %w", filepath.Base(input), err)
			}
			pageOffset += n
		case IsImage(input):
			pageOffset++
			dst := filepath.Join(outDir, pageName(pageOffset))
			if err := copyFile(input, dst); err != nil {
				return nil, fmt.Errorf("failed to copy %s: %w", filepath.Base(input), err)
			}
		default:
			return nil, fmt.Errorf("unsupported document type: %s", filepath.Base(input))
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list image directory: %w", err)
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".png") || IsImage(entry.Name()) {
			images = append(images, filepath.Join(outDir, entry.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}

// ExtractImages renders all pages of a PDF into outDir, numbering output
// files from pageOffset+1. Pages render concurrently, bounded by CPU count.
// Returns the number of pages rendered.
func ExtractImages(ctx context.Context, pdfPath, outDir string, pageOffset int) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	maxWorkers := runtime.NumCPU()

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, maxWorkers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageInPDF int) {
			defer func() { <-sem }() // release

			err := renderPage(ctx, pdfPath, outDir, pageInPDF, pageOffset+pageInPDF)
			results <- result{pageNum: pageInPDF, err: err}
		}(page)
	}

	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			return 0, fmt.Errorf("page %d: %w", r.pageNum, r.err)
		}
	}

	return pageCount, nil
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func renderPage(ctx context.Context, pdfPath, outDir string, pageInPDF, outputPageNum int) error {
	tmpDir, err := os.MkdirTemp("", "paflow-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -png: output PNG format
	// -f N / -l N: page range to render
	// -r 300: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageInPDF)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "300",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	return copyFile(srcPath, filepath.Join(outDir, pageName(outputPageNum)))
}

func pageName(pageNum int) string {
	return fmt.Sprintf("page_%04d.png", pageNum)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
