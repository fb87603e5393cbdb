package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes a payload into the on-the-wire body a backend publishes.
type Codec interface {
	// Encode serializes the payload.
	Encode(p *Payload) ([]byte, error)
	// Name returns the codec's configuration name.
	Name() string
}

// CodecByName resolves a configuration string to a codec. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown payload codec %q (supported: json, msgpack)", name)
	}
}

// JSONCodec encodes the payload as a JSON document.
type JSONCodec struct{}

func (JSONCodec) Encode(p *Payload) ([]byte, error) {
	return json.Marshal(p)
}

func (JSONCodec) Name() string { return "json" }

// MsgpackCodec encodes the payload as a MessagePack map, mirroring the JSON
// shape: {"timestamp": millis, "metrics": {...}} with metrics in insertion
// order.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(p *Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeMapLen(2); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("timestamp"); err != nil {
		return nil, err
	}
	if err := enc.EncodeInt(p.Timestamp.UnixMilli()); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("metrics"); err != nil {
		return nil, err
	}
	if err := enc.EncodeMapLen(p.Len()); err != nil {
		return nil, err
	}
	for _, name := range p.names {
		if err := enc.EncodeString(name); err != nil {
			return nil, err
		}
		if err := enc.Encode(p.values[name]); err != nil {
			return nil, fmt.Errorf("failed to encode metric %q: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Name() string { return "msgpack" }
