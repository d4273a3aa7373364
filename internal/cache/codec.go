package cache

import (
	"encoding/json"
	"fmt"
)

// JSONCodec is the default Codec: encoding/json as the wire format. It
// computes no size estimate; sizes come from the value's own Sizer
// implementation, matching the teacher's pkg/persist.Codec split
// between a wire format and a Sizer.
type JSONCodec[T Sizer] struct{}

// Encode marshals v to JSON.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}

	return data, nil
}

// Decode unmarshals JSON into a zero-value T.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T

	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("json decode: %w", err)
	}

	return v, nil
}
