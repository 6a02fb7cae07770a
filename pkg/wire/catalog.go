package wire

// Request action names. The server dispatches on the action field; the set
// below is the complete client-side surface.
const (
	ActionKeyExchange = "dh_key_exchange"

	ActionRegister     = "register"
	ActionLogin        = "login"
	ActionRefreshToken = "refresh_token"

	ActionListDrones    = "list_registered_drones"
	ActionRegisterDrone = "register_drone"
	ActionConnect       = "connect"
	ActionDisconnect    = "disconnect"

	ActionTakeoff      = "takeoff"
	ActionCaptureFrame = "capture_frame"
	ActionChooseLane   = "choose_lane"
	ActionSetSpeed     = "set_speed"
	ActionSetHeight    = "set_height"
	ActionStartFly     = "start_fly"
	ActionStopFly      = "stop_fly"
	ActionLand         = "land"

	ActionListSessions = "list_current_sessions"
	ActionEndSession   = "end_session"

	ActionSubscribeTelemetry   = "subscribe_telemetry"
	ActionUnsubscribeTelemetry = "unsubscribe_telemetry"
	ActionSubscribeVideo       = "subscribe_video"
	ActionUnsubscribeVideo     = "unsubscribe_video"
)

// KeyExchangeRequest is the first message on every connection, sent in
// plaintext before any session key exists.
type KeyExchangeRequest struct {
	Action          string `json:"action"`
	ClientPublicKey string `json:"client_public_key"`
}

// KeyExchangeReply is the server's plaintext answer to the key exchange.
type KeyExchangeReply struct {
	ServerPublicKey string `json:"server_public_key"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Action   string `json:"action"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest exchanges a refresh token for a fresh token pair.
type RefreshTokenRequest struct {
	Action       string `json:"action"`
	RefreshToken string `json:"refresh_token"`
}

// TokenGrant is the success shape of register, login and refresh_token.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ActionRequest is a request that carries no parameters beyond the access
// token: disconnect, start_fly, stop_fly, land, list_* and the telemetry
// subscription pair.
type ActionRequest struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
}

// ListDronesResponse is the success shape of list_registered_drones.
type ListDronesResponse struct {
	Drones []Drone `json:"drones"`
}

// Drone is one registered drone.
type Drone struct {
	Name string `json:"drone_name"`
	IP   string `json:"drone_ip"`
}

// RegisterDroneRequest registers a drone by name and address.
type RegisterDroneRequest struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
	Name   string `json:"drone_name"`
	IP     string `json:"drone_ip"`
}

// ConnectRequest opens a control session against a named drone.
type ConnectRequest struct {
	Action string `json:"action"`
	Token  string `json:"token,omitempty"`
	Name   string `json:"drone_name"`
}

// ConnectResponse is the success shape of connect.
type ConnectResponse struct {
	SessionID string `json:"session_id"`
}

// TakeoffRequest commands a takeoff to the given height in meters.
type TakeoffRequest struct {
	Action string  `json:"action"`
	Token  string  `json:"token,omitempty"`
	Height float64 `json:"height"`
}

// CaptureFrameRequest requests a single camera frame.
type CaptureFrameRequest struct {
	Action  string `json:"action"`
	Token   string `json:"token,omitempty"`
	Overlay bool   `json:"overlay"`
}

// CaptureFrameResponse carries one base64-encoded JPEG.
type CaptureFrameResponse struct {
	Image string `json:"image"`
}

// ChooseLaneRequest selects a lane by image click coordinates.
type ChooseLaneRequest struct {
	Action string  `json:"action"`
	Token  string  `json:"token,omitempty"`
	ClickX float64 `json:"click_x"`
	ClickY float64 `json:"click_y"`
}

// SetSpeedRequest sets the cruise speed. Speed is in meters per second on
// the wire; unit conversion from km/h happens in the session layer.
type SetSpeedRequest struct {
	Action string  `json:"action"`
	Token  string  `json:"token,omitempty"`
	Speed  float64 `json:"speed"`
}

// SetHeightRequest sets the cruise height in meters.
type SetHeightRequest struct {
	Action string  `json:"action"`
	Token  string  `json:"token,omitempty"`
	Height float64 `json:"height"`
}

// ListSessionsResponse is the success shape of list_current_sessions.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// SessionInfo describes one server-side control session.
type SessionInfo struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// EndSessionRequest terminates a server-side control session by id.
type EndSessionRequest struct {
	Action    string `json:"action"`
	Token     string `json:"token,omitempty"`
	SessionID string `json:"session_id"`
}

// SubscribeVideoRequest starts the video push stream. Changing the overlay
// setting requires an unsubscribe and a fresh subscribe.
type SubscribeVideoRequest struct {
	Action  string `json:"action"`
	Token   string `json:"token,omitempty"`
	Overlay bool   `json:"overlay"`
}
