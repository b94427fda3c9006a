// Package nest is the protocol edge for the CLOVA Speech NEST streaming
// recognition service: message types, their protobuf wire encoding, and the
// bidirectional recognize stream.
//
// The service is a single rpc over three small messages, so the wire code is
// maintained by hand against nest.proto with protowire rather than generated.
package nest

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// RequestType discriminates outbound frames.
type RequestType int32

const (
	RequestTypeConfig RequestType = 0
	RequestTypeData   RequestType = 1
)

// NestConfig carries the one-shot session configuration as a JSON document.
type NestConfig struct {
	Config string
}

// NestData carries one audio chunk plus its JSON side channel.
type NestData struct {
	Chunk         []byte
	ExtraContents string
}

// NestRequest is an outbound frame. Exactly one of Config or Data is set,
// matching the oneof in nest.proto.
type NestRequest struct {
	Type   RequestType
	Config *NestConfig
	Data   *NestData
}

// NestResponse is an inbound message; Contents is a JSON document.
type NestResponse struct {
	Contents string
}

func (m *NestConfig) encode() []byte {
	var b []byte
	if m.Config != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Config)
	}
	return b
}

func (m *NestData) encode() []byte {
	var b []byte
	if len(m.Chunk) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Chunk)
	}
	if m.ExtraContents != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.ExtraContents)
	}
	return b
}

// Marshal encodes the request in protobuf wire format.
func (m *NestRequest) Marshal() ([]byte, error) {
	var b []byte
	if m.Type != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	switch {
	case m.Config != nil && m.Data != nil:
		return nil, fmt.Errorf("nest: request sets both config and data")
	case m.Config != nil:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Config.encode())
	case m.Data != nil:
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Data.encode())
	}
	return b, nil
}

// Unmarshal decodes a request. Used by tests and fake servers; the real
// service only ever parses requests on its side.
func (m *NestRequest) Unmarshal(data []byte) error {
	*m = NestRequest{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Type = RequestType(v)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			cfg := &NestConfig{}
			if err := cfg.unmarshal(v); err != nil {
				return err
			}
			m.Config = cfg
			data = data[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			d := &NestData{}
			if err := d.unmarshal(v); err != nil {
				return err
			}
			m.Data = d
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func (m *NestConfig) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Config = v
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}

func (m *NestData) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Chunk = append([]byte(nil), v...)
			data = data[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.ExtraContents = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Marshal encodes the response. Used by tests and fake servers.
func (m *NestResponse) Marshal() ([]byte, error) {
	var b []byte
	if m.Contents != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Contents)
	}
	return b, nil
}

// Unmarshal decodes an inbound response.
func (m *NestResponse) Unmarshal(data []byte) error {
	*m = NestResponse{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Contents = v
			data = data[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
	}
	return nil
}
