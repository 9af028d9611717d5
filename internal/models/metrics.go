package models

// MetricsSnapshot is a lightweight summary of runtime counters for the status endpoint.
type MetricsSnapshot struct {
	HTTPRequests     uint64  `json:"http_requests"`
	AvgRequestMillis float64 `json:"avg_request_ms"`
	Frames           uint64  `json:"frames"`
	FacesDetected    uint64  `json:"faces_detected"`
	Marks            uint64  `json:"marks"`
	SessionsStarted  uint64  `json:"sessions_started"`
	ActiveSessions   int64   `json:"active_sessions"`
}
