package domain

import "time"

// ClockOutRecord is one clock-out event row returned by the API
type ClockOutRecord struct {
	ID           int64  `json:"id"`
	Vin          string `json:"vin"`
	DeptID       int    `json:"deptId"`
	PicURL       string `json:"picUrl"`
	ClockOutTime string `json:"clockOutTime"`
	Address      string `json:"address"`
}

// ClockOutPage is one page of clock-out records
type ClockOutPage struct {
	Total int              `json:"total"`
	Rows  []ClockOutRecord `json:"rows"`
}

// ListEnvelope is the structured response wrapper the API returns on
// every successful request
type ListEnvelope struct {
	Code int          `json:"code"`
	Msg  string       `json:"msg"`
	Data ClockOutPage `json:"data"`
}

// ListQuery describes one clock-out list request
type ListQuery struct {
	PageNo    int
	PageSize  int
	StartTime time.Time
	EndTime   time.Time
	Vin       string
	DeptID    int
}

// WatcherStatus is a point-in-time snapshot of the poll loop
type WatcherStatus struct {
	Running       bool      `json:"running"`
	LastPollAt    time.Time `json:"last_poll_at"`
	LastPollError string    `json:"last_poll_error,omitempty"`
	CurrentHour   int       `json:"current_hour_urls"`
	Accumulated   int       `json:"accumulated_urls"`
}
