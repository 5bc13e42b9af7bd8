package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Profile selects an ImageMagick pipeline.
type Profile string

const (
	// ProfileStandard suits printed cards photographed under even light.
	ProfileStandard Profile = "standard"
	// ProfileLaminated fights glare and uneven light on laminated or
	// glossy cards with an adaptive threshold.
	ProfileLaminated Profile = "laminated"
)

// Preprocessor enhances document photos before Tesseract reads them.
type Preprocessor struct {
	binary string
}

// NewPreprocessor picks 'magick' (ImageMagick 7) when present, otherwise
// 'convert' (ImageMagick 6).
func NewPreprocessor() *Preprocessor {
	binary := "convert"
	if _, err := exec.LookPath("magick"); err == nil {
		binary = "magick"
	}
	return &Preprocessor{binary: binary}
}

// Binary reports the ImageMagick executable in use.
func (p *Preprocessor) Binary() string { return p.binary }

// Preprocess returns the enhanced image. When ImageMagick is missing or
// fails the original bytes are returned unchanged.
func (p *Preprocessor) Preprocess(ctx context.Context, imageData []byte, profile Profile) []byte {
	in, err := os.CreateTemp("", "kyc_in_*.img")
	if err != nil {
		return imageData
	}
	defer os.Remove(in.Name())
	out, err := os.CreateTemp("", "kyc_out_*.jpg")
	if err != nil {
		in.Close()
		return imageData
	}
	out.Close()
	defer os.Remove(out.Name())

	if _, err := in.Write(imageData); err != nil {
		in.Close()
		return imageData
	}
	in.Close()

	cmd := exec.CommandContext(ctx, p.binary, pipelineArgs(profile, in.Name(), out.Name())...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logrus.WithError(err).WithField("stderr", stderr.String()).Warn("ImageMagick preprocessing failed, using original image")
		return imageData
	}

	processed, err := os.ReadFile(out.Name())
	if err != nil || len(processed) == 0 {
		return imageData
	}
	logrus.WithFields(logrus.Fields{
		"profile": profile,
		"before":  len(imageData),
		"after":   len(processed),
	}).Debug("image preprocessed")
	return processed
}

// pipelineArgs builds the ImageMagick argument list for a profile.
func pipelineArgs(profile Profile, input, output string) []string {
	args := []string{input, "-auto-orient", "-resize", "2000x2000>", "-colorspace", "Gray"}
	switch profile {
	case ProfileLaminated:
		args = append(args,
			"-lat", "40x40+8%",
			"-contrast-stretch", "5%x2%",
			"-despeckle", "-despeckle",
			"-sharpen", "0x2",
		)
	default:
		args = append(args,
			"-normalize",
			"-contrast-stretch", "2%x1%",
			"-despeckle",
			"-sharpen", "0x1",
			"-unsharp", "0x0.5+0.5+0",
		)
	}
	return append(args, "-quality", "95", output)
}

// Version runs the binary's version command and returns its first line.
func (p *Preprocessor) Version(ctx context.Context) (string, error) {
	return firstLine(exec.CommandContext(ctx, p.binary, "-version"))
}

func firstLine(cmd *exec.Cmd) (string, error) {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s not found or not executable: %w", cmd.Path, err)
	}
	line, _, _ := bytes.Cut(output, []byte("\n"))
	return string(bytes.TrimSpace(line)), nil
}
