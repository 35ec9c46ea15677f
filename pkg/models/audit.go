package models

import "time"

// AuditEntry records one API request. Secret values and request bodies are
// never part of an entry.
type AuditEntry struct {
	RequestID      string
	Timestamp      time.Time
	Operation      string
	Path           string
	Status         string
	ResponseCode   int
	ResponseTimeMs int64
	ClientIP       string
	Authenticated  bool
}
