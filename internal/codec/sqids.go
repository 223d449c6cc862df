package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqids/sqids-go"
)

const (
	sqidsAlphabet  = "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat"
	sqidsMinLength = 10
)

// Sqids encodes the id as the two big-endian 64-bit halves.
type Sqids struct {
	sq *sqids.Sqids
}

func NewSqids() (*Sqids, error) {
	sq, err := sqids.New(sqids.Options{
		Alphabet:  sqidsAlphabet,
		MinLength: sqidsMinLength,
	})
	if err != nil {
		return nil, fmt.Errorf("sqids init: %w", err)
	}
	return &Sqids{sq: sq}, nil
}

func (s *Sqids) Encode(id uuid.UUID) (string, error) {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	tok, err := s.sq.Encode([]uint64{hi, lo})
	if err != nil {
		return "", fmt.Errorf("sqids encode: %w", err)
	}
	return tok, nil
}

func (s *Sqids) Decode(token string) (uuid.UUID, error) {
	nums := s.sq.Decode(token)
	if len(nums) != 2 {
		return uuid.Nil, fmt.Errorf("%w: expected 2 numbers, got %d", ErrMalformed, len(nums))
	}
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], nums[0])
	binary.BigEndian.PutUint64(id[8:], nums[1])
	// Several strings can decode to the same numbers; only the canonical one is accepted.
	canonical, err := s.Encode(id)
	if err != nil || canonical != token {
		return uuid.Nil, fmt.Errorf("%w: non-canonical", ErrMalformed)
	}
	return id, nil
}
