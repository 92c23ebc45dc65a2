package stomp

import (
	"fmt"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// HeartBeat is the pair carried by the heart-beat header: the smallest
// interval the sender can emit beats at, and the interval it wants to
// receive them at. Zero means "cannot" / "does not want".
type HeartBeat struct {
	Outgoing time.Duration
	Incoming time.Duration
}

// String renders the header value in milliseconds.
func (h HeartBeat) String() string {
	return fmt.Sprintf("%d,%d", h.Outgoing.Milliseconds(), h.Incoming.Milliseconds())
}

// ParseHeartBeat parses a heart-beat header value. An empty value means
// no heart-beating.
func ParseHeartBeat(v string) (HeartBeat, error) {
	if v == "" {
		return HeartBeat{}, nil
	}
	cx, cy, err := frame.ParseHeartBeat(v)
	if err != nil {
		return HeartBeat{}, fmt.Errorf("%w: bad heart-beat %q: %w", ErrMalformedFrame, v, err)
	}
	return HeartBeat{Outgoing: cx, Incoming: cy}, nil
}

// Negotiate returns the effective intervals for the client given what it
// offered and what the server answered in CONNECTED: send is how often the
// client must write a beat, recv is how often it should expect one.
func Negotiate(client, server HeartBeat) (send, recv time.Duration) {
	if client.Outgoing > 0 && server.Incoming > 0 {
		send = max(client.Outgoing, server.Incoming)
	}
	if client.Incoming > 0 && server.Outgoing > 0 {
		recv = max(client.Incoming, server.Outgoing)
	}
	return send, recv
}
