package tweets

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"

	"clima-relay/internal/modules/clima/types"
)

// TweetRequest is message tweet.TweetRequest from tweet.proto.
type TweetRequest struct {
	Description string
	Country     string
	Weather     string
}

// TweetResponse is message tweet.TweetResponse from tweet.proto.
type TweetResponse struct {
	Status string
}

// Describe renders the one-line summary a tweet carries for obs.
func Describe(obs types.Observation) string {
	return fmt.Sprintf("Clima en %s: %s, Temperatura: %d°C, Humedad: %d%%",
		obs.Name, obs.Clima, obs.Temperatura, obs.Humedad)
}

func FromObservation(obs types.Observation) *TweetRequest {
	return &TweetRequest{
		Description: Describe(obs),
		Country:     obs.Name,
		Weather:     obs.Clima,
	}
}

func (m *TweetRequest) marshal() []byte {
	var b []byte
	b = appendString(b, 1, m.Description)
	b = appendString(b, 2, m.Country)
	b = appendString(b, 3, m.Weather)
	return b
}

func (m *TweetRequest) unmarshal(b []byte) error {
	*m = TweetRequest{}
	return consumeStrings(b, func(num protowire.Number, v string) {
		switch num {
		case 1:
			m.Description = v
		case 2:
			m.Country = v
		case 3:
			m.Weather = v
		}
	})
}

func (m *TweetResponse) marshal() []byte {
	return appendString(nil, 1, m.Status)
}

func (m *TweetResponse) unmarshal(b []byte) error {
	*m = TweetResponse{}
	return consumeStrings(b, func(num protowire.Number, v string) {
		if num == 1 {
			m.Status = v
		}
	})
}

// proto3 leaves empty strings off the wire.
func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// consumeStrings walks every field in b, hands length-delimited ones to set
// and skips the rest.
func consumeStrings(b []byte, set func(num protowire.Number, v string)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		if !utf8.ValidString(v) {
			return fmt.Errorf("field %d: string is not valid UTF-8", num)
		}
		set(num, v)
		b = b[n:]
	}
	return nil
}

type wireMessage interface {
	marshal() []byte
	unmarshal([]byte) error
}

// codec speaks the protobuf wire format. The tweet messages encode
// themselves; anything else (health checks, reflection) goes through proto.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMessage:
		return m.marshal(), nil
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("tweets codec: cannot marshal %T", v)
	}
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireMessage:
		return m.unmarshal(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("tweets codec: cannot unmarshal into %T", v)
	}
}
