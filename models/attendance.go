package models

import "strings"

// Session lifecycle statuses
const (
	SessionScheduled = "scheduled"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Check-in statuses as stored in the legacy column
const (
	StatusPresent    = "present"
	StatusEarly      = "early"
	StatusLate       = "late"
	StatusEarlyLeave = "early_leave"
	StatusAbsent     = "absent"
)

// AttendanceKind is the first-class classification of a check-in. The legacy
// data encoded proxy attendance as a marker inside the free-text message while
// keeping status=present; internally we store the kind explicitly and only
// speak the marker dialect at the import/export boundary.
type AttendanceKind string

const (
	KindPresent    AttendanceKind = "present"
	KindLate       AttendanceKind = "late"
	KindEarlyLeave AttendanceKind = "early_leave"
	KindProxy      AttendanceKind = "proxy"
	KindAbsent     AttendanceKind = "absent"
)

// ProxyMarker is the literal the legacy system embeds in a check-in message
// to flag proxy attendance.
const ProxyMarker = "[代理出席]"

// CountsPresent reports whether the kind lands in the present bucket of the
// attendance rate. Late and early-leave count; proxy deliberately does not.
func (k AttendanceKind) CountsPresent() bool {
	return k == KindPresent || k == KindLate || k == KindEarlyLeave
}

func (k AttendanceKind) Valid() bool {
	switch k {
	case KindPresent, KindLate, KindEarlyLeave, KindProxy, KindAbsent:
		return true
	}
	return false
}

// DeriveKind classifies a legacy (status, message) pair. The marker wins over
// the status column: a marked message is proxy even when status says present.
func DeriveKind(status, message string) AttendanceKind {
	if strings.Contains(message, ProxyMarker) {
		return KindProxy
	}
	switch status {
	case StatusLate:
		return KindLate
	case StatusEarlyLeave:
		return KindEarlyLeave
	case StatusAbsent:
		return KindAbsent
	default:
		return KindPresent
	}
}

// LegacyStatus maps a kind back to the status value the legacy schema expects.
// Proxy rows are written as present plus the message marker.
func (k AttendanceKind) LegacyStatus() string {
	switch k {
	case KindLate:
		return StatusLate
	case KindEarlyLeave:
		return StatusEarlyLeave
	case KindAbsent:
		return StatusAbsent
	default:
		return StatusPresent
	}
}

// StripProxyMarker removes the legacy marker from a message and reports
// whether it was present.
func StripProxyMarker(message string) (string, bool) {
	if !strings.Contains(message, ProxyMarker) {
		return message, false
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(message, ProxyMarker, ""))
	return cleaned, true
}

// EncodeLegacyMessage re-applies the marker for exports so legacy consumers
// keep seeing the dialect they expect.
func EncodeLegacyMessage(kind AttendanceKind, message string) string {
	if kind != KindProxy {
		return message
	}
	if message == "" {
		return ProxyMarker
	}
	return ProxyMarker + " " + message
}
