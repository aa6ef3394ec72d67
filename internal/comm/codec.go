package comm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrProtocol marks a malformed or unknown wire record. A session that
// hits it terminates its connection.
var ErrProtocol = errors.New("protocol error")

// Encode wraps a concrete variant in the envelope and renders it as a
// single JSON line (no trailing newline; the transport adds framing).
func Encode(payload any) (string, error) {
	typ, err := typeOf(payload)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", typ, err)
	}

	line, err := json.Marshal(Message{Type: typ, Data: data})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", typ, err)
	}

	return string(line), nil
}

// Decode parses one line into exactly one member of the closed variant
// set. Unknown discriminants and missing required fields fail with
// ErrProtocol.
func Decode(line string) (any, error) {
	msg := &Message{}
	if err := json.Unmarshal([]byte(line), msg); err != nil {
		return nil, fmt.Errorf("%w: malformed envelope: %v", ErrProtocol, err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("%w: missing type discriminant", ErrProtocol)
	}

	payload, err := newPayload(msg.Type)
	if err != nil {
		return nil, err
	}

	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, payload); err != nil {
			return nil, fmt.Errorf("%w: malformed %s payload: %v", ErrProtocol, msg.Type, err)
		}
	}

	if err := validate(payload); err != nil {
		return nil, err
	}

	return payload, nil
}

func typeOf(payload any) (string, error) {
	switch payload.(type) {
	case *LoginRequest:
		return TypeLoginRequest, nil
	case *LoginResponse:
		return TypeLoginResponse, nil
	case *TradeInitiateRequest:
		return TypeTradeInitiateRequest, nil
	case *TradeOfferNotification:
		return TypeTradeOfferNotification, nil
	case *TradeResponse:
		return TypeTradeResponse, nil
	case *TradeCancelNotification:
		return TypeTradeCancelNotice, nil
	case *CollectionRequest:
		return TypeCollectionRequest, nil
	case *CollectionResponse:
		return TypeCollectionResponse, nil
	case *ServerTradeStatus:
		return TypeServerTradeStatus, nil
	}
	return "", fmt.Errorf("%w: unsupported payload %T", ErrProtocol, payload)
}

func newPayload(typ string) (any, error) {
	switch typ {
	case TypeLoginRequest:
		return &LoginRequest{}, nil
	case TypeLoginResponse:
		return &LoginResponse{}, nil
	case TypeTradeInitiateRequest:
		return &TradeInitiateRequest{}, nil
	case TypeTradeOfferNotification:
		return &TradeOfferNotification{}, nil
	case TypeTradeResponse:
		return &TradeResponse{}, nil
	case TypeTradeCancelNotice:
		return &TradeCancelNotification{}, nil
	case TypeCollectionRequest:
		return &CollectionRequest{}, nil
	case TypeCollectionResponse:
		return &CollectionResponse{}, nil
	case TypeServerTradeStatus:
		return &ServerTradeStatus{}, nil
	}
	return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, typ)
}

// validate checks the identity fields a variant cannot be processed
// without.
func validate(payload any) error {
	switch p := payload.(type) {
	case *LoginRequest:
		if p.Username == "" {
			return fmt.Errorf("%w: login missing username", ErrProtocol)
		}
	case *TradeInitiateRequest:
		if p.Sender == "" || p.Recipient == "" {
			return fmt.Errorf("%w: trade-initiate missing sender or recipient", ErrProtocol)
		}
	case *TradeResponse:
		if p.TradeID == "" {
			return fmt.Errorf("%w: trade-response missing trade_id", ErrProtocol)
		}
	case *CollectionRequest:
		if p.Username == "" {
			return fmt.Errorf("%w: get-collection missing username", ErrProtocol)
		}
	}
	return nil
}
