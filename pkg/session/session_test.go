package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/skyward/dronelink/pkg/store"
	"github.com/skyward/dronelink/pkg/transport"
	"github.com/skyward/dronelink/pkg/wire"
)

// newTestSession wires a Session to a scripted server over an in-memory
// pipe. Init has not been called yet.
func newTestSession(t *testing.T, st store.Store) (*Session, *droneServer) {
	t.Helper()

	p0, p1 := transport.NewPipePair(transport.PipeConfig{})
	t.Cleanup(func() { p0.Close() })

	server := startDroneServer(t, p1)

	s, err := New(Config{
		Store: st,
		Dial: func(ctx context.Context) (transport.Transport, error) {
			return p0, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, server
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Store: store.NewMemory()}); err != ErrNoEndpoint {
		t.Errorf("New() without endpoint error = %v, want %v", err, ErrNoEndpoint)
	}
	if _, err := New(Config{Endpoint: "wss://example"}); err != ErrNoStore {
		t.Errorf("New() without store error = %v, want %v", err, ErrNoStore)
	}
}

func TestInit_NoPersistedTokens(t *testing.T) {
	st := store.NewMemory()
	s, server := newTestSession(t, st)

	ok, err := s.Init(testCtx(t))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if ok {
		t.Error("Init() = true without persisted tokens")
	}

	// No refresh must have been attempted.
	server.waitReady()
	for _, a := range server.actions() {
		if a == wire.ActionRefreshToken {
			t.Error("refresh attempted without persisted tokens")
		}
	}

	// The channel is open: a login afterwards works.
	server.handle(wire.ActionLogin, grantHandler("a1", "r1"))
	if err := s.Login(testCtx(t), "pilot@example.com", "hunter2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.Authenticated() {
		t.Error("Authenticated() = false after login")
	}
}

func TestLogin_PersistsTokens(t *testing.T) {
	st := store.NewMemory()
	s, server := newTestSession(t, st)
	server.handle(wire.ActionLogin, grantHandler("access-1", "refresh-1"))

	if _, err := s.Init(testCtx(t)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.Login(testCtx(t), "pilot@example.com", "hunter2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	for key, want := range map[string]string{KeyAccess: "access-1", KeyRefresh: "refresh-1"} {
		got, err := st.Get(key)
		if err != nil || got != want {
			t.Errorf("store %s = %q, %v; want %q", key, got, err, want)
		}
	}

	var req wire.LoginRequest
	if !server.lastRequest(wire.ActionLogin, &req) {
		t.Fatal("server saw no login request")
	}
	if req.Email != "pilot@example.com" || req.Password != "hunter2" {
		t.Errorf("login request = %+v", req)
	}
}

func TestLogin_MalformedGrant(t *testing.T) {
	s, server := newTestSession(t, store.NewMemory())
	server.handle(wire.ActionLogin, func(wire.Message) any {
		return map[string]any{"access_token": "only-half"}
	})

	if _, err := s.Init(testCtx(t)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.Login(testCtx(t), "a@b", "pw"); !errors.Is(err, ErrMalformedGrant) {
		t.Errorf("Login() error = %v, want %v", err, ErrMalformedGrant)
	}
	if s.Authenticated() {
		t.Error("partial grant left session authenticated")
	}
}

func TestInit_RefreshSuccess(t *testing.T) {
	st := store.NewMemory()
	st.Set(KeyAccess, "old-access")
	st.Set(KeyRefresh, "old-refresh")

	s, server := newTestSession(t, st)
	server.handle(wire.ActionRefreshToken, grantHandler("new-access", "new-refresh"))

	ok, err := s.Init(testCtx(t))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !ok {
		t.Fatal("Init() = false, want true")
	}

	var req wire.RefreshTokenRequest
	if !server.lastRequest(wire.ActionRefreshToken, &req) {
		t.Fatal("server saw no refresh request")
	}
	if req.RefreshToken != "old-refresh" {
		t.Errorf("refresh request token = %q, want %q", req.RefreshToken, "old-refresh")
	}

	got, _ := st.Get(KeyAccess)
	if got != "new-access" {
		t.Errorf("store access = %q, want %q", got, "new-access")
	}
}

func TestInit_RefreshRejectedWipesCredentials(t *testing.T) {
	st := store.NewMemory()
	st.Set(KeyAccess, "stale-access")
	st.Set(KeyRefresh, "stale-refresh")
	st.Set(KeySessionID, "stale-session")

	s, server := newTestSession(t, st)
	server.handle(wire.ActionRefreshToken, errorHandler("token expired"))

	ok, err := s.Init(testCtx(t))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if ok {
		t.Error("Init() = true after rejected refresh")
	}

	for _, key := range []string{KeyAccess, KeyRefresh, KeySessionID} {
		if _, err := st.Get(key); err != store.ErrNotFound {
			t.Errorf("store %s still present after rejected refresh", key)
		}
	}
	if s.Authenticated() {
		t.Error("session still authenticated after rejected refresh")
	}
}

func TestRemoteError(t *testing.T) {
	s, server := newTestSession(t, store.NewMemory())
	server.handle(wire.ActionLogin, errorHandler("invalid credentials"))

	if _, err := s.Init(testCtx(t)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	err := s.Login(testCtx(t), "a@b", "wrong")
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Login() error = %v, want RemoteError", err)
	}
	if re.Message != "invalid credentials" {
		t.Errorf("RemoteError message = %q", re.Message)
	}
	if !IsRemote(err) {
		t.Error("IsRemote() = false")
	}
}

func TestSetSpeed_ConvertsToMetersPerSecond(t *testing.T) {
	s, server := loginTestSession(t)

	if err := s.SetSpeed(testCtx(t), 36.0); err != nil {
		t.Fatalf("SetSpeed() error = %v", err)
	}

	var req wire.SetSpeedRequest
	if !server.lastRequest(wire.ActionSetSpeed, &req) {
		t.Fatal("server saw no set_speed request")
	}
	if req.Speed != 10.0 {
		t.Errorf("wire speed = %v m/s, want 10.0", req.Speed)
	}
	if req.Token == "" {
		t.Error("set_speed request carried no token")
	}
}

func TestConnectDisconnect_SessionIDLifecycle(t *testing.T) {
	st := store.NewMemory()
	s, server := loginTestSessionWithStore(t, st)
	server.handle(wire.ActionConnect, func(wire.Message) any {
		return wire.ConnectResponse{SessionID: "sess-42"}
	})

	id, err := s.ConnectDrone(testCtx(t), "DroneA")
	if err != nil {
		t.Fatalf("ConnectDrone() error = %v", err)
	}
	if id != "sess-42" {
		t.Errorf("ConnectDrone() = %q", id)
	}
	if got, _ := st.Get(KeySessionID); got != "sess-42" {
		t.Errorf("persisted session id = %q", got)
	}
	if resumed, ok := s.ResumableSessionID(); !ok || resumed != "sess-42" {
		t.Errorf("ResumableSessionID() = %q, %v", resumed, ok)
	}

	if err := s.DisconnectDrone(testCtx(t)); err != nil {
		t.Fatalf("DisconnectDrone() error = %v", err)
	}
	if _, err := st.Get(KeySessionID); err != store.ErrNotFound {
		t.Error("session id still persisted after disconnect")
	}
	// Tokens survive a disconnect.
	if _, err := st.Get(KeyAccess); err != nil {
		t.Error("access token lost on disconnect")
	}
}

func TestConnectDrone_MissingSessionID(t *testing.T) {
	s, server := loginTestSession(t)
	server.handle(wire.ActionConnect, func(wire.Message) any {
		return map[string]any{}
	})

	if _, err := s.ConnectDrone(testCtx(t), "DroneA"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("ConnectDrone() error = %v, want %v", err, ErrMalformedResponse)
	}
}

func TestCaptureFrame_DecodesImage(t *testing.T) {
	s, server := loginTestSession(t)

	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	server.handle(wire.ActionCaptureFrame, func(wire.Message) any {
		return wire.CaptureFrameResponse{Image: base64.StdEncoding.EncodeToString(jpeg)}
	})

	got, err := s.CaptureFrame(testCtx(t), true)
	if err != nil {
		t.Fatalf("CaptureFrame() error = %v", err)
	}
	if !bytes.Equal(got, jpeg) {
		t.Errorf("CaptureFrame() = %x, want %x", got, jpeg)
	}

	var req wire.CaptureFrameRequest
	if !server.lastRequest(wire.ActionCaptureFrame, &req) {
		t.Fatal("server saw no capture_frame request")
	}
	if !req.Overlay {
		t.Error("overlay flag not transmitted")
	}
}

func TestListDrones(t *testing.T) {
	s, server := loginTestSession(t)
	server.handle(wire.ActionListDrones, func(wire.Message) any {
		return wire.ListDronesResponse{Drones: []wire.Drone{{Name: "DroneA", IP: "10.0.0.7"}}}
	})

	drones, err := s.ListDrones(testCtx(t))
	if err != nil {
		t.Fatalf("ListDrones() error = %v", err)
	}
	if len(drones) != 1 || drones[0].Name != "DroneA" {
		t.Errorf("ListDrones() = %+v", drones)
	}
}

func TestCommands_RequireAuthentication(t *testing.T) {
	s, _ := newTestSession(t, store.NewMemory())
	if _, err := s.Init(testCtx(t)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := s.StartFly(testCtx(t)); err != ErrNotAuthenticated {
		t.Errorf("StartFly() error = %v, want %v", err, ErrNotAuthenticated)
	}
	if _, err := s.ListDrones(testCtx(t)); err != ErrNotAuthenticated {
		t.Errorf("ListDrones() error = %v, want %v", err, ErrNotAuthenticated)
	}
}

func TestCall_RequiresOpenChannel(t *testing.T) {
	s, err := New(Config{Endpoint: "wss://example", Store: store.NewMemory()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Init never ran; there is no channel.
	if err := s.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	s.mu.Lock()
	s.access = "tok"
	s.mu.Unlock()
	if err := s.Land(testCtx(t)); err != ErrNotConnected {
		t.Errorf("Land() error = %v, want %v", err, ErrNotConnected)
	}
}

func TestLogout_WipesEverything(t *testing.T) {
	st := store.NewMemory()
	s, _ := loginTestSessionWithStore(t, st)
	st.Set(KeySessionID, "sess-1")

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	for _, key := range []string{KeyAccess, KeyRefresh, KeySessionID} {
		if _, err := st.Get(key); err != store.ErrNotFound {
			t.Errorf("store %s survived logout", key)
		}
	}
	if s.Authenticated() {
		t.Error("Authenticated() = true after logout")
	}
}

func TestKmhToMs(t *testing.T) {
	tests := []struct {
		kmh  float64
		want float64
	}{
		{kmh: 36.0, want: 10.0},
		{kmh: 0, want: 0},
		{kmh: 3.6, want: 1.0},
		{kmh: 90, want: 25},
	}
	for _, tt := range tests {
		if got := KmhToMs(tt.kmh); got != tt.want {
			t.Errorf("KmhToMs(%v) = %v, want %v", tt.kmh, got, tt.want)
		}
	}
}

// loginTestSession returns an initialized, logged-in session.
func loginTestSession(t *testing.T) (*Session, *droneServer) {
	t.Helper()
	return loginTestSessionWithStore(t, store.NewMemory())
}

func loginTestSessionWithStore(t *testing.T, st store.Store) (*Session, *droneServer) {
	t.Helper()

	s, server := newTestSession(t, st)
	server.handle(wire.ActionLogin, grantHandler("test-access", "test-refresh"))

	if _, err := s.Init(testCtx(t)); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := s.Login(testCtx(t), "pilot@example.com", "hunter2"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return s, server
}
