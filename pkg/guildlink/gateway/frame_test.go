package gateway

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("event", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(messageFrame("m1", "hello")))
		require.NoError(t, err)
		assert.Equal(t, OpEvent, frame.Op)
		assert.Equal(t, "ChatMessageCreated", frame.EventName)
		assert.Equal(t, "m1", frame.MessageID)
		assert.Contains(t, string(frame.Payload), `"content":"hello"`)
	})

	t.Run("control frame without payload", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"op":4}`))
		require.NoError(t, err)
		assert.Equal(t, OpHeartbeatAck, frame.Op)
		assert.Empty(t, frame.EventName)
		assert.Empty(t, frame.Payload)
	})

	t.Run("unknown opcode decodes", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"op":77,"d":{}}`))
		require.NoError(t, err)
		assert.False(t, frame.Op.Known())
		assert.Equal(t, "unknown(77)", frame.Op.String())
	})

	t.Run("op zero is not missing", func(t *testing.T) {
		frame, err := DecodeFrame([]byte(`{"op":0,"t":"X"}`))
		require.NoError(t, err)
		assert.Equal(t, OpEvent, frame.Op)
	})

	malformed := []string{
		``,
		`not json`,
		`{"t":"ChatMessageCreated"}`,
		`{"op":"one"}`,
		`[1,2,3]`,
	}
	for _, data := range malformed {
		t.Run("malformed "+data, func(t *testing.T) {
			_, err := DecodeFrame([]byte(data))
			require.Error(t, err)

			var decodeErr *DecodeError
			assert.True(t, errors.As(err, &decodeErr))
		})
	}

	t.Run("missing op wraps sentinel", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{}`))
		assert.ErrorIs(t, err, errMissingOpcode)
	})

	t.Run("error data is truncated", func(t *testing.T) {
		_, err := DecodeFrame([]byte(`{"op":` + strings.Repeat("9", 1000)))
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Len(t, decodeErr.Data, maxErrorDataLen)
	})
}

func TestEncodeFrames(t *testing.T) {
	assert.JSONEq(t, `{"op":3}`, string(EncodeHeartbeat()))

	data, err := EncodeFrame(OpHeartbeat, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":3}`, string(data))

	data, err = EncodeFrame(OpResume, map[string]string{"lastMessageId": "m1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":2,"d":{"lastMessageId":"m1"}}`, string(data))

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, OpResume, frame.Op)
}

func TestFrameWelcome(t *testing.T) {
	frame, err := DecodeFrame([]byte(welcomeFrame(22500, "m7")))
	require.NoError(t, err)

	welcome, err := frame.Welcome()
	require.NoError(t, err)
	assert.Equal(t, 22500, welcome.HeartbeatIntervalMs)
	assert.Equal(t, "m7", welcome.LastMessageID)
	assert.Equal(t, "botUser", welcome.Identity())

	assert.Equal(t, "bot1", Welcome{BotID: "bot1"}.Identity())

	_, err = Frame{Op: OpEvent}.Welcome()
	assert.Error(t, err)

	_, err = Frame{Op: OpWelcome, Payload: []byte(`{"heartbeatIntervalMs":0}`)}.Welcome()
	assert.Error(t, err)
}

func TestFrameServerError(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"op":8,"d":{"message":"bad token"}}`))
	require.NoError(t, err)
	assert.Equal(t, "bad token", frame.ServerError().Message)

	assert.Empty(t, Frame{Op: OpError}.ServerError().Message)
}
