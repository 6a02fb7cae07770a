package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/skyward/dronelink/pkg/securechannel"
	"github.com/skyward/dronelink/pkg/wire"
)

// subscriptionBuffer is the typed event buffer per subscription.
const subscriptionBuffer = 16

// VideoFrame is one decoded video event: both camera feeds, delivered
// together. A frame pair is never delivered partially.
type VideoFrame struct {
	Frame      []byte
	FrontFrame []byte
}

// TelemetrySubscription is a standing listener for telemetry events.
type TelemetrySubscription struct {
	events     chan wire.Telemetry
	sub        *securechannel.Subscriber
	session    *Session
	done       chan struct{}
	cancelOnce sync.Once
}

// SubscribeTelemetry asks the server to start pushing telemetry and installs
// a standing filter on the shared stream. The subscribe request has no
// correlated reply; the ongoing event stream is the answer. Events flow
// until Cancel.
func (s *Session) SubscribeTelemetry(ctx context.Context) (*TelemetrySubscription, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	ch := s.currentChannel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	sub := ch.Subscribe()
	if err := ch.Send(wire.ActionRequest{Action: wire.ActionSubscribeTelemetry, Token: token}); err != nil {
		sub.Close()
		return nil, err
	}

	ts := &TelemetrySubscription{
		events:  make(chan wire.Telemetry, subscriptionBuffer),
		sub:     sub,
		session: s,
		done:    make(chan struct{}),
	}
	go ts.pump()
	return ts, nil
}

// Events returns the telemetry channel. It is closed when the subscription
// is canceled or the channel goes down.
func (t *TelemetrySubscription) Events() <-chan wire.Telemetry {
	return t.events
}

// Cancel stops the local listener and tells the server to stop pushing.
// Both halves matter: skipping the local half leaks a listener, skipping the
// remote half leaks server push bandwidth.
func (t *TelemetrySubscription) Cancel(ctx context.Context) error {
	var err error
	t.cancelOnce.Do(func() {
		close(t.done)
		t.sub.Close()

		token, terr := t.session.token()
		if terr != nil {
			err = terr
			return
		}
		ch := t.session.currentChannel()
		if ch == nil {
			err = ErrNotConnected
			return
		}
		err = ch.Send(wire.ActionRequest{Action: wire.ActionUnsubscribeTelemetry, Token: token})
	})
	return err
}

func (t *TelemetrySubscription) pump() {
	defer close(t.events)

	for msg := range t.sub.Messages() {
		if msg.Event != wire.EventTelemetry {
			continue
		}
		var env wire.EventEnvelope
		if err := msg.Decode(&env); err != nil {
			continue
		}
		var tel wire.Telemetry
		if err := json.Unmarshal(env.Data, &tel); err != nil {
			if t.session.log != nil {
				t.session.log.Warnf("dropping malformed telemetry event: %v", err)
			}
			continue
		}
		select {
		case t.events <- tel:
		case <-t.done:
			return
		}
	}
}

// VideoSubscription is a standing listener for video frame events.
type VideoSubscription struct {
	frames     chan VideoFrame
	sub        *securechannel.Subscriber
	session    *Session
	done       chan struct{}
	cancelOnce sync.Once
}

// SubscribeVideo asks the server to start pushing video frames. Toggling the
// overlay requires canceling this subscription and subscribing again with
// the new setting.
func (s *Session) SubscribeVideo(ctx context.Context, overlay bool) (*VideoSubscription, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	ch := s.currentChannel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	sub := ch.Subscribe()
	err = ch.Send(wire.SubscribeVideoRequest{
		Action:  wire.ActionSubscribeVideo,
		Token:   token,
		Overlay: overlay,
	})
	if err != nil {
		sub.Close()
		return nil, err
	}

	vs := &VideoSubscription{
		frames:  make(chan VideoFrame, subscriptionBuffer),
		sub:     sub,
		session: s,
		done:    make(chan struct{}),
	}
	go vs.pump()
	return vs, nil
}

// Frames returns the video frame channel. It is closed when the
// subscription is canceled or the channel goes down.
func (v *VideoSubscription) Frames() <-chan VideoFrame {
	return v.frames
}

// Cancel stops the local listener and tells the server to stop pushing.
func (v *VideoSubscription) Cancel(ctx context.Context) error {
	var err error
	v.cancelOnce.Do(func() {
		close(v.done)
		v.sub.Close()

		token, terr := v.session.token()
		if terr != nil {
			err = terr
			return
		}
		ch := v.session.currentChannel()
		if ch == nil {
			err = ErrNotConnected
			return
		}
		err = ch.Send(wire.ActionRequest{Action: wire.ActionUnsubscribeVideo, Token: token})
	})
	return err
}

func (v *VideoSubscription) pump() {
	defer close(v.frames)

	for msg := range v.sub.Messages() {
		if msg.Event != wire.EventVideoFrame {
			continue
		}
		var env wire.EventEnvelope
		if err := msg.Decode(&env); err != nil {
			continue
		}
		var payload wire.VideoFramePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			if v.session.log != nil {
				v.session.log.Warnf("dropping malformed video event: %v", err)
			}
			continue
		}

		// Both feeds decode or the event is dropped; a half-delivered
		// frame pair is not a valid state.
		frame, err := base64.StdEncoding.DecodeString(payload.Frame)
		if err != nil {
			if v.session.log != nil {
				v.session.log.Warnf("dropping video event with bad frame: %v", err)
			}
			continue
		}
		front, err := base64.StdEncoding.DecodeString(payload.FrontFrame)
		if err != nil {
			if v.session.log != nil {
				v.session.log.Warnf("dropping video event with bad front frame: %v", err)
			}
			continue
		}

		select {
		case v.frames <- VideoFrame{Frame: frame, FrontFrame: front}:
		case <-v.done:
			return
		}
	}
}
