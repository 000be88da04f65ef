package domain

import "context"

// Provider defines the clock-out API surface consumed by the watcher
type Provider interface {
	// GetClockOutList fetches one page of clock-out records
	GetClockOutList(ctx context.Context, query ListQuery) (*ClockOutPage, error)
}

// ImageSink receives freshly discovered image URLs for processing
type ImageSink interface {
	// Process downloads and annotates the given image URLs
	Process(ctx context.Context, urls []string)
}
