package domain

import "time"

// Handle identifies one in-flight capture. It is assigned by the VR runtime
// and unique among concurrently pending captures.
type Handle uint32

// SessionRef is the identity of a connected remote client.
type SessionRef interface {
	ID() string
}

// RemoteRequest travels with a capture that was asked for over the socket
// server so the result can be routed back to its session.
type RemoteRequest struct {
	Nonce   string
	Delay   int
	Tag     string
	Session SessionRef
}

type PendingCapture struct {
	Handle        Handle
	ByUser        bool
	SuperSampled  bool
	OriginalScale float64
	Remote        *RemoteRequest
	FilePath      string
	FilePathVR    string
	RequestedAt   time.Time
}

type CaptureState string

const (
	CaptureIdle            CaptureState = "idle"
	CaptureRequested       CaptureState = "requested"
	CaptureAwaitingRuntime CaptureState = "awaiting_runtime"
	CaptureCompleted       CaptureState = "completed"
	CaptureFailed          CaptureState = "failed"
)

// ScreenshotResult is what the runtime reports for a capture call.
type ScreenshotResult struct {
	Handle     Handle
	FilePath   string
	FilePathVR string
}

// CaptureTarget tells the runtime where to write a capture.
type CaptureTarget struct {
	Dir  string
	Name string
}

// CaptureRecord is the journal entry published for every completed capture.
type CaptureRecord struct {
	ID            string       `json:"id" msgpack:"id"`
	Handle        Handle       `json:"handle" msgpack:"handle"`
	AppID         string       `json:"appId" msgpack:"app_id"`
	State         CaptureState `json:"state" msgpack:"state"`
	ByUser        bool         `json:"byUser" msgpack:"by_user"`
	SuperSampled  bool         `json:"superSampled" msgpack:"super_sampled"`
	Nonce         string       `json:"nonce,omitempty" msgpack:"nonce"`
	Tag           string       `json:"tag,omitempty" msgpack:"tag"`
	FilePath      string       `json:"filePath" msgpack:"file_path"`
	FilePathVR    string       `json:"filePathVR" msgpack:"file_path_vr"`
	FilePathRight string       `json:"filePathRight,omitempty" msgpack:"file_path_right"`
	TimestampMs   int64        `json:"timestampMs" msgpack:"timestamp_ms"`
}
