package service

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"time"

	"clockout-watcher/internal/common"
)

// Downloader fetches and decodes remote images with a bounded timeout
type Downloader struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewDownloader creates a downloader with the given per-image timeout
func NewDownloader(timeout time.Duration, httpClient *http.Client) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Downloader{httpClient: httpClient, timeout: timeout}
}

// Download fetches the image at url and decodes it
func (d *Downloader) Download(ctx context.Context, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if common.IsContextCanceled(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.UnavailableError("image download returned status %d for %s", resp.StatusCode, url)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image from %s: %w", url, err)
	}
	return img, nil
}
