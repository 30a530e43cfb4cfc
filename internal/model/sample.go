// internal/model/sample.go
package model

import "time"

// Sample is one EMG amplitude reading. Arrival order is its only ordering.
type Sample float64

// EndReasonKind classifies how a session read loop finished
type EndReasonKind string

const (
	EndReasonCancelled      EndReasonKind = "CANCELLED"
	EndReasonEndOfStream    EndReasonKind = "END_OF_STREAM"
	EndReasonTransportError EndReasonKind = "TRANSPORT_ERROR"
)

// EndReason is reported exactly once when a session stops streaming
type EndReason struct {
	Kind   EndReasonKind `json:"kind"`
	Detail string        `json:"detail,omitempty"`
}

// Cancelled is the end reason of an explicit teardown
func Cancelled() EndReason {
	return EndReason{Kind: EndReasonCancelled}
}

// EndOfStream is the end reason of a clean close by the device
func EndOfStream() EndReason {
	return EndReason{Kind: EndReasonEndOfStream}
}

// TransportError is the end reason of a mid-stream I/O failure
func TransportError(detail string) EndReason {
	return EndReason{Kind: EndReasonTransportError, Detail: detail}
}

func (r EndReason) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Detail
}

// SessionStats holds per-session counters
type SessionStats struct {
	SessionID        string     `json:"session_id"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	LinesRead        int64      `json:"lines_read"`
	SamplesDelivered int64      `json:"samples_delivered"`
	LinesDiscarded   int64      `json:"lines_discarded"`
	EndReason        *EndReason `json:"end_reason,omitempty"`
}
