package rpc

import (
	"encoding/json"
	"fmt"
)

// jsonCodec serialises plain Go structs. It replaces connect's protojson
// codec under the same name, so any Connect client speaking JSON works.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
