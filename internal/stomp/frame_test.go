package stomp

import (
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Terminates(t *testing.T) {
	t.Parallel()

	data, err := Encode(frame.New(frame.SUBSCRIBE, frame.Id, "sub-0", frame.Destination, "/topic/tasks"))
	require.NoError(t, err)

	assert.Equal(t, "SUBSCRIBE\nid:sub-0\ndestination:/topic/tasks\n\n\x00", string(data))
}

func TestEncode_NilIsHeartBeat(t *testing.T) {
	t.Parallel()

	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))
}

func TestParse_RoundTripsEscapedHeaders(t *testing.T) {
	t.Parallel()

	in := frame.New(frame.MESSAGE, "odd", "colon:back\\slash\nline")
	in.Body = []byte(`{"type":"CREATED","taskId":1}`)

	data, err := Encode(in)
	require.NoError(t, err)

	frames, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	assert.Equal(t, frame.MESSAGE, frames[0].Command)
	assert.Equal(t, "colon:back\\slash\nline", frames[0].Header.Get("odd"))
	assert.Equal(t, in.Body, frames[0].Body)
}

func TestParse_SkipsHeartBeatsAndReadsSeveralFrames(t *testing.T) {
	t.Parallel()

	data := []byte("\n\nMESSAGE\ndestination:/topic/tasks\n\nfirst\x00\nRECEIPT\nreceipt-id:7\n\n\x00\n")

	frames, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, "first", string(frames[0].Body))
	assert.Equal(t, frame.RECEIPT, frames[1].Command)
	assert.Equal(t, "7", frames[1].Header.Get(frame.ReceiptId))
}

func TestParse_OnlyHeartBeats_ReturnsNothing(t *testing.T) {
	t.Parallel()

	frames, err := Parse([]byte("\n"))
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestParse_ContentLengthAllowsNULInBody(t *testing.T) {
	t.Parallel()

	data := []byte("MESSAGE\ncontent-length:3\n\na\x00b\x00")

	frames, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("a\x00b"), frames[0].Body)
}

func TestParse_FirstRepeatedHeaderWins(t *testing.T) {
	t.Parallel()

	frames, err := Parse([]byte("MESSAGE\nfoo:1\nfoo:2\n\n\x00"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "1", frames[0].Header.Get("foo"))
}

func TestParse_RejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no terminator":    "MESSAGE\n\nbody",
		"no blank line":    "MESSAGE\nfoo:1",
		"header no colon":  "MESSAGE\nfoo\n\n\x00",
		"bad length":       "MESSAGE\ncontent-length:x\n\n\x00",
		"short body":       "MESSAGE\ncontent-length:10\n\nabc\x00",
		"huge length":      "MESSAGE\ncontent-length:9223372036854775807\n\n\x00",
		"overflow length":  "MESSAGE\ncontent-length:99999999999999999999\n\n\x00",
		"negative length":  "MESSAGE\ncontent-length:-1\n\n\x00",
		"oversize message": "MESSAGE\n\n" + string(make([]byte, MaxMessageSize)) + "\x00",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var err error
			require.NotPanics(t, func() { _, err = Parse([]byte(data)) })
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestParseHeartBeat(t *testing.T) {
	t.Parallel()

	hb, err := ParseHeartBeat("4000,10000")
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, hb.Outgoing)
	assert.Equal(t, 10*time.Second, hb.Incoming)
	assert.Equal(t, "4000,10000", hb.String())

	hb, err = ParseHeartBeat("")
	require.NoError(t, err)
	assert.Zero(t, hb)

	_, err = ParseHeartBeat("4000")
	assert.ErrorIs(t, err, ErrMalformedFrame)
	_, err = ParseHeartBeat("-1,0")
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	client := HeartBeat{Outgoing: 4 * time.Second, Incoming: 4 * time.Second}

	send, recv := Negotiate(client, HeartBeat{Outgoing: 10 * time.Second, Incoming: time.Second})
	assert.Equal(t, 4*time.Second, send)
	assert.Equal(t, 10*time.Second, recv)

	send, recv = Negotiate(client, HeartBeat{})
	assert.Zero(t, send, "server does not want beats")
	assert.Zero(t, recv, "server cannot send beats")

	send, recv = Negotiate(HeartBeat{}, HeartBeat{Outgoing: time.Second, Incoming: time.Second})
	assert.Zero(t, send)
	assert.Zero(t, recv)
}
