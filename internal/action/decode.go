package action

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// envelope is the wire form of an action: a type discriminator plus payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a JSON-encoded action of the form {"type": ..., "payload": ...}
// and validates its payload.
func Decode(data []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding action envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("action %q has no payload", env.Type)
	}

	var (
		a   Action
		err error
	)
	switch env.Type {
	case TypeDisplay:
		a, err = decodePayload[DisplayAction](env.Payload)
	case TypeScopedKey:
		a, err = decodePayload[ScopedKeyAction](env.Payload)
	case TypeProfileInfo:
		a, err = decodePayload[ProfileInfoAction](env.Payload)
	case TypeOAuthInfo:
		a, err = decodePayload[OAuthInfoAction](env.Payload)
	case TypeSettingChanged:
		a, err = decodePayload[SettingChangedAction](env.Payload)
	case TypeRoute:
		a, err = decodePayload[RouteAction](env.Payload)
	default:
		return nil, fmt.Errorf("unknown action type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s action: %w", env.Type, err)
	}
	return a, nil
}

// Encode is the inverse of Decode.
func Encode(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: a.Type(), Payload: payload})
}

func decodePayload[T Action](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	if err := validate.Struct(v); err != nil {
		return v, err
	}
	return v, nil
}
