// Package rpc defines the mealscan Connect services: procedure names,
// message types, and handler and client constructors.
//
// Messages are plain Go structs carried by a JSON codec, so every handler and
// client built here registers that codec.
package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

const codecName = "json"

// jsonCodec marshals messages with encoding/json. It replaces Connect's
// protojson codec, which only accepts proto.Message values.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}

// WithJSON registers the JSON codec on a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
