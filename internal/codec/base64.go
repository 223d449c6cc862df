package codec

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// Base64 encodes the 16 raw id bytes as unpadded URL-safe base64 (22 chars).
type Base64 struct{}

func (Base64) Encode(id uuid.UUID) (string, error) {
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

func (Base64) Decode(token string) (uuid.UUID, error) {
	if len(token) != base64.RawURLEncoding.EncodedLen(16) {
		return uuid.Nil, fmt.Errorf("%w: length %d", ErrMalformed, len(token))
	}
	raw, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return id, nil
}
