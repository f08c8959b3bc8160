package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	t.Run("subscribe", func(t *testing.T) {
		msg, err := ParseInbound([]byte(`{"type":"subscribe","topics":["a"," ","b"]}`))
		require.NoError(t, err)
		assert.Equal(t, KindSubscribe, msg.Kind)
		assert.Equal(t, []string{"a", "b"}, msg.Topics)
	})

	t.Run("single topic fallback", func(t *testing.T) {
		msg, err := ParseInbound([]byte(`{"type":"unsubscribe","topic":"a"}`))
		require.NoError(t, err)
		assert.Equal(t, KindUnsubscribe, msg.Kind)
		assert.Equal(t, []string{"a"}, msg.Topics)
	})

	t.Run("publish keeps raw data", func(t *testing.T) {
		msg, err := ParseInbound([]byte(`{"type":"publish","topic":"t","data":{"x":[1,2]}}`))
		require.NoError(t, err)
		assert.Equal(t, KindPublish, msg.Kind)
		assert.Equal(t, "t", msg.Topic)
		assert.JSONEq(t, `{"x":[1,2]}`, string(msg.Data))
	})

	t.Run("broadcast and signal", func(t *testing.T) {
		msg, err := ParseInbound([]byte(`{"type":"broadcast","channel":"c"}`))
		require.NoError(t, err)
		assert.Equal(t, KindBroadcast, msg.Kind)
		assert.Equal(t, "c", msg.Channel)

		msg, err = ParseInbound([]byte(`{"type":"signal","target":"id-1","data":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, KindSignal, msg.Kind)
		assert.Equal(t, "id-1", msg.Target)
	})

	t.Run("unknown type", func(t *testing.T) {
		msg, err := ParseInbound([]byte(`{"type":"dance"}`))
		require.NoError(t, err)
		assert.Equal(t, KindUnknown, msg.Kind)
		assert.Equal(t, "unknown", msg.Kind.String())
	})

	malformed := map[string]string{
		"invalid json":      `{`,
		"missing type":      `{"topic":"a"}`,
		"empty subscribe":   `{"type":"subscribe","topics":[]}`,
		"publish no topic":  `{"type":"publish","data":1}`,
		"broadcast no chan": `{"type":"broadcast"}`,
		"signal no target":  `{"type":"signal","data":1}`,
		"not an object":     `[1,2]`,
	}
	for name, raw := range malformed {
		raw := raw
		t.Run(name, func(t *testing.T) {
			_, err := ParseInbound([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestRoomPayload(t *testing.T) {
	t.Run("object fields spread", func(t *testing.T) {
		out, err := roomPayload(json.RawMessage(`{"sdp":"v=0","sender":"spoofed"}`), "s1", "room", 42)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sdp":"v=0","sender":"s1","channel":"room","timestamp":42}`, string(out))
	})

	t.Run("non-object wrapped", func(t *testing.T) {
		out, err := roomPayload(json.RawMessage(`[1,2]`), "s1", "room", 1)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":[1,2],"sender":"s1","channel":"room","timestamp":1}`, string(out))
	})

	t.Run("null data", func(t *testing.T) {
		out, err := roomPayload(json.RawMessage(`null`), "s1", "room", 1)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":null,"sender":"s1","channel":"room","timestamp":1}`, string(out))
	})

	t.Run("empty data", func(t *testing.T) {
		out, err := roomPayload(nil, "s1", "room", 1)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sender":"s1","channel":"room","timestamp":1}`, string(out))
	})
}
