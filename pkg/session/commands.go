package session

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/skyward/dronelink/pkg/wire"
)

// KmhToMs converts a speed from km/h to the m/s unit used on the wire.
func KmhToMs(kmh float64) float64 {
	return kmh * 1000 / 3600
}

// ListDrones returns the drones registered to the account.
func (s *Session) ListDrones(ctx context.Context) ([]wire.Drone, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	var resp wire.ListDronesResponse
	err = s.call(ctx, wire.ActionRequest{Action: wire.ActionListDrones, Token: token}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Drones, nil
}

// RegisterDrone registers a drone by name and address.
func (s *Session) RegisterDrone(ctx context.Context, name, ip string) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.RegisterDroneRequest{
		Action: wire.ActionRegisterDrone,
		Token:  token,
		Name:   name,
		IP:     ip,
	}, nil)
}

// ConnectDrone opens a control session against the named drone and persists
// the session id the server assigned.
func (s *Session) ConnectDrone(ctx context.Context, name string) (string, error) {
	token, err := s.token()
	if err != nil {
		return "", err
	}
	var resp wire.ConnectResponse
	err = s.call(ctx, wire.ConnectRequest{
		Action: wire.ActionConnect,
		Token:  token,
		Name:   name,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%w: connect response missing session_id", ErrMalformedResponse)
	}
	if err := s.store.Set(KeySessionID, resp.SessionID); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

// DisconnectDrone ends the drone control session and clears the persisted
// session id.
func (s *Session) DisconnectDrone(ctx context.Context) error {
	if err := s.simpleCommand(ctx, wire.ActionDisconnect); err != nil {
		return err
	}
	return s.store.Delete(KeySessionID)
}

// Takeoff commands a takeoff to the given height in meters.
func (s *Session) Takeoff(ctx context.Context, height float64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.TakeoffRequest{
		Action: wire.ActionTakeoff,
		Token:  token,
		Height: height,
	}, nil)
}

// CaptureFrame requests one camera frame and returns the decoded JPEG bytes.
func (s *Session) CaptureFrame(ctx context.Context, overlay bool) ([]byte, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	var resp wire.CaptureFrameResponse
	err = s.call(ctx, wire.CaptureFrameRequest{
		Action:  wire.ActionCaptureFrame,
		Token:   token,
		Overlay: overlay,
	}, &resp)
	if err != nil {
		return nil, err
	}
	image, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: capture_frame image: %v", ErrMalformedResponse, err)
	}
	return image, nil
}

// ChooseLane selects a lane by click coordinates on the camera image.
func (s *Session) ChooseLane(ctx context.Context, x, y float64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.ChooseLaneRequest{
		Action: wire.ActionChooseLane,
		Token:  token,
		ClickX: x,
		ClickY: y,
	}, nil)
}

// SetSpeed sets the cruise speed. The caller passes km/h; the wire carries
// m/s (speed_ms = speed_kmh * 1000 / 3600).
func (s *Session) SetSpeed(ctx context.Context, speedKmh float64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.SetSpeedRequest{
		Action: wire.ActionSetSpeed,
		Token:  token,
		Speed:  KmhToMs(speedKmh),
	}, nil)
}

// SetHeight sets the cruise height in meters.
func (s *Session) SetHeight(ctx context.Context, meters float64) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.SetHeightRequest{
		Action: wire.ActionSetHeight,
		Token:  token,
		Height: meters,
	}, nil)
}

// StartFly starts autonomous flight.
func (s *Session) StartFly(ctx context.Context) error {
	return s.simpleCommand(ctx, wire.ActionStartFly)
}

// StopFly halts autonomous flight; the drone hovers in place.
func (s *Session) StopFly(ctx context.Context) error {
	return s.simpleCommand(ctx, wire.ActionStopFly)
}

// Land commands a landing.
func (s *Session) Land(ctx context.Context) error {
	return s.simpleCommand(ctx, wire.ActionLand)
}

// ListSessions returns the account's server-side control sessions.
func (s *Session) ListSessions(ctx context.Context) ([]wire.SessionInfo, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	var resp wire.ListSessionsResponse
	err = s.call(ctx, wire.ActionRequest{Action: wire.ActionListSessions, Token: token}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// EndSession terminates a server-side control session by id.
func (s *Session) EndSession(ctx context.Context, sessionID string) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.EndSessionRequest{
		Action:    wire.ActionEndSession,
		Token:     token,
		SessionID: sessionID,
	}, nil)
}

// simpleCommand issues a parameterless authenticated action.
func (s *Session) simpleCommand(ctx context.Context, action string) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.call(ctx, wire.ActionRequest{Action: action, Token: token}, nil)
}
