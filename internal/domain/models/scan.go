package models

import "time"

// DetectionEvent is one raw barcode detection pushed by the camera
// collaborator. Symbology is carried for logging only; the scan controller
// never interprets it.
type DetectionEvent struct {
	Value      string    `json:"value"`
	Symbology  string    `json:"symbology,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// PermissionState is the camera authorization state of a scan session.
type PermissionState string

const (
	PermissionUnknown PermissionState = "unknown"
	PermissionDenied  PermissionState = "denied"
	PermissionGranted PermissionState = "granted"
)

// SessionPhase is the externally visible phase of a scan session.
type SessionPhase string

const (
	SessionIdle      SessionPhase = "idle"
	SessionReady     SessionPhase = "ready"
	SessionCapturing SessionPhase = "capturing"
	SessionAccepted  SessionPhase = "accepted"
	SessionStopped   SessionPhase = "stopped"
	SessionDenied    SessionPhase = "denied"
)

// ScanSnapshot is a point-in-time view of a scan session, returned to the
// UI collaborator over HTTP.
type ScanSnapshot struct {
	Phase             SessionPhase    `json:"phase"`
	Permission        PermissionState `json:"permission"`
	CaptureActive     bool            `json:"captureActive"`
	Accepted          bool            `json:"accepted"`
	LastAcceptedValue string          `json:"lastAcceptedValue,omitempty"`
	LastAcceptedAt    *time.Time      `json:"lastAcceptedAt,omitempty"`
}
