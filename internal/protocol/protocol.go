package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeState announces an engine mode change (idle/recording/playback)
	TypeState MessageType = "state"

	// TypeLog carries a human-readable status line
	TypeLog MessageType = "log"

	// TypeDiagnostics carries per-segment playback accuracy reports
	TypeDiagnostics MessageType = "diagnostics"

	// TypeMacros carries the stored recording list
	TypeMacros MessageType = "macros"

	// Commands sent by clients
	TypeRecordStart MessageType = "record_start"
	TypeRecordStop  MessageType = "record_stop"
	TypePlay        MessageType = "play"
	TypePlayStop    MessageType = "play_stop"
	TypeList        MessageType = "list"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatePayload is the payload for TypeState
type StatePayload struct {
	Mode string `json:"mode"`
}

// LogPayload is the payload for TypeLog
type LogPayload struct {
	Line string `json:"line"`
}

// DiagnosticsPayload is the payload for TypeDiagnostics
type DiagnosticsPayload struct {
	Macro       string   `json:"macro"`
	Segments    int      `json:"segments"`
	MaxErrorDeg float64  `json:"max_error_deg"`
	AvgErrorDeg float64  `json:"avg_error_deg"`
	Cancelled   bool     `json:"cancelled"`
	Lines       []string `json:"lines,omitempty"`
}

// RecordStopPayload names the recording being finished
type RecordStopPayload struct {
	Name string `json:"name"`
}

// PlayPayload names the recording to replay
type PlayPayload struct {
	Slug string `json:"slug"`
}
