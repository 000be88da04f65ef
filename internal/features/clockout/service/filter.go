package service

import (
	"net/url"
	"path"
	"strings"
	"time"

	"clockout-watcher/internal/features/clockout/domain"
)

// stampLayout is the timestamp prefix embedded in image file names,
// e.g. 20250114093015-as00214.jpg
const stampLayout = "20060102150405"

// HourFilter selects the picture URLs whose embedded capture timestamp
// falls inside the current wall-clock hour. URLs without a parseable
// timestamp are dropped.
type HourFilter struct {
	now func() time.Time
}

// NewHourFilter creates a filter using the real clock
func NewHourFilter() *HourFilter {
	return &HourFilter{now: time.Now}
}

// NewHourFilterAt creates a filter with an injectable clock for tests
func NewHourFilterAt(now func() time.Time) *HourFilter {
	return &HourFilter{now: now}
}

// CurrentHourURLs returns the picture URLs from rows that were captured
// during the current hour, preserving API order and dropping duplicates
func (f *HourFilter) CurrentHourURLs(rows []domain.ClockOutRecord) []string {
	hourStart := f.now().Truncate(time.Hour)
	hourEnd := hourStart.Add(time.Hour)

	var urls []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row.PicURL == "" {
			continue
		}
		if _, ok := seen[row.PicURL]; ok {
			continue
		}

		stamp, ok := stampFromURL(row.PicURL)
		if !ok || stamp.Before(hourStart) || !stamp.Before(hourEnd) {
			continue
		}

		seen[row.PicURL] = struct{}{}
		urls = append(urls, row.PicURL)
	}
	return urls
}

// stampFromURL extracts the capture timestamp from an image URL whose
// file name starts with a YYYYMMDDHHMMSS- segment
func stampFromURL(rawURL string) (time.Time, bool) {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	} else {
		name = path.Base(rawURL)
	}

	prefix, _, found := strings.Cut(name, "-")
	if !found || len(prefix) != len(stampLayout) {
		return time.Time{}, false
	}

	stamp, err := time.ParseInLocation(stampLayout, prefix, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return stamp, true
}
