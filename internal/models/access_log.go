package models

import "time"

// AccessLog is one connection served by the page server.
type AccessLog struct {
	ID          string        `json:"id"`
	RemoteAddr  string        `json:"remote_addr"`
	RequestLine string        `json:"request_line"`
	Status      int           `json:"status"`
	Page        string        `json:"page"`
	Bytes       int           `json:"bytes"`
	Duration    time.Duration `json:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}
