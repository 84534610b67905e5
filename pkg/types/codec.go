package types

import (
	"encoding/json"
	"fmt"
)

// Codec converts between a Go value and the opaque bytes the engine stores.
// The engine never inspects the bytes it is handed, and no engine
// operation calls a Codec: engine.WithCodec only records one.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec is the default Codec, matching the teacher storage layer's
// convention of JSON-encoding every persisted struct.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return b, nil
}

func (JSONCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializationFailure, err)
	}
	return nil
}

// DefaultCodec is the Codec used when none is supplied.
var DefaultCodec Codec = JSONCodec{}

// AsAlarmScheduledTime extracts a scheduled-time value from stored
// metadata. A bbolt-backed store round-trips metadata through JSON, which
// turns an AlarmMetadata struct into a map[string]any with a float64
// field, so both the struct and its decoded shape are accepted here.
func AsAlarmScheduledTime(meta any) (int64, bool) {
	switch v := meta.(type) {
	case AlarmMetadata:
		return v.ScheduledTime, true
	case *AlarmMetadata:
		if v == nil {
			return 0, false
		}
		return v.ScheduledTime, true
	case map[string]any:
		if t, ok := v["scheduledTime"]; ok {
			switch n := t.(type) {
			case float64:
				return int64(n), true
			case int64:
				return n, true
			}
		}
	}
	return 0, false
}
