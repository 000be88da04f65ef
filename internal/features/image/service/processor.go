package service

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/metrics"
)

// fileStampLayout is the timestamp prefix in clock-out image file names
const fileStampLayout = "20060102150405"

// Processor downloads clock-out images, stamps them with a capture-time
// header and source caption, and writes the results to the output dir.
// It is the sink the watcher feeds fresh URLs into.
type Processor struct {
	downloader *Downloader
	annotator  *Annotator
	outputDir  string
}

// NewProcessor creates an image processor writing into outputDir
func NewProcessor(downloader *Downloader, annotator *Annotator, outputDir string) (*Processor, error) {
	if downloader == nil {
		return nil, common.InvalidInputError("downloader cannot be nil")
	}
	if annotator == nil {
		return nil, common.InvalidInputError("annotator cannot be nil")
	}
	if outputDir == "" {
		return nil, common.InvalidInputError("output directory cannot be empty")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	return &Processor{
		downloader: downloader,
		annotator:  annotator,
		outputDir:  outputDir,
	}, nil
}

// Process downloads and annotates each URL. Failures are logged and
// skipped so one bad image never blocks the rest of the batch.
func (p *Processor) Process(ctx context.Context, urls []string) {
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			log.Printf("Image processing stopped: %v", err)
			return
		}

		outPath, err := p.processOne(ctx, u)
		if err != nil {
			if common.IsContextCanceled(err) {
				return
			}
			log.Printf("Failed to process image %s: %v", u, err)
			continue
		}

		metrics.ImagesAnnotatedTotal.Inc()
		log.Printf("Annotated image saved: %s", outPath)
	}
}

func (p *Processor) processOne(ctx context.Context, imageURL string) (string, error) {
	img, err := p.downloader.Download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	name := baseName(imageURL)
	boxes := []TextBox{
		{Lines: []string{captureStamp(name)}, Header: true},
		{Lines: []string{name}},
	}

	annotated, err := p.annotator.Annotate(img, boxes)
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(name, path.Ext(name))
	outPath := filepath.Join(p.outputDir, fmt.Sprintf("annotated_%s.png", stem))
	if err := gg.SavePNG(outPath, annotated); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", outPath, err)
	}
	return outPath, nil
}

// baseName extracts the file name from an image URL
func baseName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}

// captureStamp renders the capture time embedded in the file name, or
// the current time when the name carries none
func captureStamp(name string) string {
	prefix, _, found := strings.Cut(name, "-")
	if found && len(prefix) == len(fileStampLayout) {
		if stamp, err := time.ParseInLocation(fileStampLayout, prefix, time.Local); err == nil {
			return stamp.Format("2006-01-02 15:04:05")
		}
	}
	return time.Now().Format("2006-01-02 15:04:05")
}
