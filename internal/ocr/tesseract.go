package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// ErrUnavailable means the tesseract binary could not be run.
var ErrUnavailable = errors.New("tesseract unavailable")

// TesseractOCR shells out to the tesseract CLI, feeding the image on stdin.
type TesseractOCR struct {
	binary   string
	language string
}

// NewTesseractOCR creates an OCR engine. Indian identity documents mix
// English and Hindi, so an empty language means "eng+hin".
func NewTesseractOCR(language string) *TesseractOCR {
	if strings.TrimSpace(language) == "" {
		language = "eng+hin"
	}
	return &TesseractOCR{binary: "tesseract", language: language}
}

// ExtractText returns the recognized text and how long tesseract took.
func (t *TesseractOCR) ExtractText(ctx context.Context, imageBytes []byte) (string, float64, error) {
	started := time.Now()

	cmd := exec.CommandContext(ctx, t.binary, t.args()...)
	cmd.Stdin = bytes.NewReader(imageBytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", time.Since(started).Seconds(), fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return cleanText(stdout.String()), time.Since(started).Seconds(), nil
}

// Version reports the installed tesseract version.
func (t *TesseractOCR) Version(ctx context.Context) (string, error) {
	return firstLine(exec.CommandContext(ctx, t.binary, "--version"))
}

func (t *TesseractOCR) args() []string {
	// psm 6: a single uniform block of text, which suits ID cards.
	return []string{"stdin", "stdout", "-l", t.language, "--psm", "6"}
}

// cleanText drops blank lines and trailing spaces tesseract leaves behind.
func cleanText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\f", ""), "\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimRight(l, " \t\r"); strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
