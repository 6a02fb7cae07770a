package wire

import "encoding/json"

// Event tags for server-pushed messages.
const (
	EventTelemetry  = "telemetry"
	EventVideoFrame = "video_frame"
)

// EventEnvelope is the outer shape of every pushed event.
type EventEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Vector3 is a position or velocity sample in the drone's NED frame.
type Vector3 struct {
	X float64 `json:"x_val"`
	Y float64 `json:"y_val"`
	Z float64 `json:"z_val"`
}

// Telemetry is the payload of a telemetry event.
type Telemetry struct {
	Position Vector3 `json:"position"`
	Velocity Vector3 `json:"velocity"`
}

// Altitude returns the altitude in meters. The NED frame points z downward,
// so altitude is the negated z position.
func (t Telemetry) Altitude() float64 {
	return -t.Position.Z
}

// VideoFramePayload is the payload of a video_frame event: two
// independently base64-encoded JPEG camera feeds.
type VideoFramePayload struct {
	Frame      string `json:"frame"`
	FrontFrame string `json:"front_frame"`
}
