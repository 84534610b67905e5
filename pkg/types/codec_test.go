package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTripsStoredEntry(t *testing.T) {
	codec := JSONCodec{}
	original := StoredEntry{Value: []byte("hello world")}

	data, err := codec.Encode(original)
	require.NoError(t, err)

	var decoded StoredEntry
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, original.Value, decoded.Value)
}

func TestJSONCodecRoundTripsAlarmMetadata(t *testing.T) {
	codec := JSONCodec{}
	original := AlarmMetadata{ScheduledTime: 1_893_456_000_000}

	data, err := codec.Encode(original)
	require.NoError(t, err)

	var decoded AlarmMetadata
	require.NoError(t, codec.Decode(data, &decoded))
	assert.Equal(t, original.ScheduledTime, decoded.ScheduledTime)
}

func TestJSONCodecDecodeFailureWrapsSentinel(t *testing.T) {
	codec := JSONCodec{}
	var out StoredEntry
	err := codec.Decode([]byte("not json"), &out)
	assert.ErrorIs(t, err, ErrDeserializationFailure)
}

func TestAsAlarmScheduledTimeFromStruct(t *testing.T) {
	meta := AlarmMetadata{ScheduledTime: 42}
	got, ok := AsAlarmScheduledTime(meta)
	require.True(t, ok)
	assert.Equal(t, int64(42), got)
}

func TestAsAlarmScheduledTimeFromDecodedMap(t *testing.T) {
	// Mirrors what a bbolt round-trip through JSON hands back: a
	// map[string]any with a float64 field, not the original struct.
	decoded := map[string]any{"scheduledTime": float64(99)}
	got, ok := AsAlarmScheduledTime(decoded)
	require.True(t, ok)
	assert.Equal(t, int64(99), got)
}

func TestAsAlarmScheduledTimeFromNilPointerIsAbsent(t *testing.T) {
	var meta *AlarmMetadata
	_, ok := AsAlarmScheduledTime(meta)
	assert.False(t, ok)
}

func TestAsAlarmScheduledTimeFromUnrelatedTypeIsAbsent(t *testing.T) {
	_, ok := AsAlarmScheduledTime("not alarm metadata")
	assert.False(t, ok)
}
