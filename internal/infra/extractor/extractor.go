package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/infra/extractor/pdf"
)

const (
	renderTimeout = 60 * time.Second
	ocrTimeout    = 120 * time.Second
)

// Result is the outcome of extracting text from one document.
type Result struct {
	PageCount int
	CharCount int
	OCRPages  int
	Method    entity.ExtractionMethod
}

// Extractor pulls text out of downloaded PDFs, using native content-stream
// text where it is dense enough and falling back to OCR (via pdftoppm and
// tesseract) otherwise, up to maxOCRPages per document.
type Extractor struct {
	cfg           Config
	hasTesseract  bool
	hasPdftoppm   bool
}

// New checks for the tesseract and pdftoppm binaries on PATH and returns a
// ready-to-use Extractor. Their absence is not an error: OCR is simply
// disabled and native-only extraction still proceeds.
func New(cfg Config) *Extractor {
	e := &Extractor{
		cfg:          cfg,
		hasTesseract: commandAvailable("tesseract"),
		hasPdftoppm:  commandAvailable("pdftoppm"),
	}
	if !e.hasTesseract {
		slog.Warn("tesseract not found, OCR fallback disabled")
	}
	if !e.hasPdftoppm {
		slog.Warn("pdftoppm not found, OCR fallback disabled")
	}
	return e
}

func commandAvailable(name string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, "--version")
	return cmd.Run() == nil
}

// Extract reads pdfPath, writes the extracted text to outputPath (creating
// parent directories as needed), and returns a summary of what was found.
// A non-nil error means extraction failed outright (entity.ExtractionMethodError).
func (e *Extractor) Extract(ctx context.Context, pdfPath, outputPath string) (Result, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return Result{Method: entity.ExtractionMethodError}, fmt.Errorf("read pdf: %w", err)
	}

	doc, err := pdf.Open(data)
	if err != nil {
		return Result{Method: entity.ExtractionMethodError}, fmt.Errorf("parse pdf: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{Method: entity.ExtractionMethodError}, fmt.Errorf("create output dir: %w", err)
	}

	pageCount := doc.PageCount()
	canOCR := e.hasTesseract && e.hasPdftoppm
	ocrPages := 0
	method := entity.ExtractionMethodNative

	var allText []string
	for i := 0; i < pageCount; i++ {
		text := strings.TrimSpace(pdf.ExtractText(doc.PageContent(i)))

		if len(text) < e.cfg.MinCharsPerPage && canOCR && ocrPages < maxOCRPages {
			ocrText, err := e.ocrPage(ctx, pdfPath, i)
			if err != nil {
				slog.Debug("ocr failed for page", slog.String("pdf", pdfPath), slog.Int("page", i+1), slog.Any("error", err))
			} else if len(ocrText) > len(text) {
				text = ocrText
				ocrPages++
				method = entity.ExtractionMethodNativeOCR
			}
		}

		allText = append(allText, fmt.Sprintf("--- Page %d ---\n%s", i+1, text))
	}

	fullText := strings.Join(allText, "\n\n")
	if err := os.WriteFile(outputPath, []byte(fullText), 0o644); err != nil {
		return Result{Method: entity.ExtractionMethodError}, fmt.Errorf("write extracted text: %w", err)
	}

	if ocrPages >= maxOCRPages {
		slog.Warn("ocr capped for document", slog.String("pdf", pdfPath), slog.Int("max_ocr_pages", maxOCRPages))
	}

	return Result{
		PageCount: pageCount,
		CharCount: len(fullText),
		OCRPages:  ocrPages,
		Method:    method,
	}, nil
}

// ocrPage rasterizes page i (0-based) of pdfPath at e.cfg.OCRDPI using
// pdftoppm, then runs tesseract against the resulting PNG.
func (e *Extractor) ocrPage(ctx context.Context, pdfPath string, page int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "extract-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	imgPrefix := filepath.Join(tmpDir, "page")
	pageNum := page + 1

	renderCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()
	renderCmd := exec.CommandContext(renderCtx, "pdftoppm",
		"-f", itoa(pageNum), "-l", itoa(pageNum),
		"-r", itoa(e.cfg.OCRDPI), "-png", pdfPath, imgPrefix)
	if out, err := renderCmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w (%s)", err, string(out))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("read temp dir: %w", err)
	}
	var imgPath string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			imgPath = filepath.Join(tmpDir, entry.Name())
			break
		}
	}
	if imgPath == "" {
		return "", fmt.Errorf("pdftoppm produced no image")
	}

	ocrCtx, cancel2 := context.WithTimeout(ctx, ocrTimeout)
	defer cancel2()
	var stdout bytes.Buffer
	ocrCmd := exec.CommandContext(ocrCtx, "tesseract", imgPath, "stdout", "-l", e.cfg.TesseractLang)
	ocrCmd.Stdout = &stdout
	if err := ocrCmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
