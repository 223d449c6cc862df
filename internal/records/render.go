package records

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// Raw is a record body ready to be served as plain text.
type Raw struct {
	Text string
	ETag string
}

func (s *Service) Raw(ctx context.Context, token string, requester uuid.UUID) (Raw, error) {
	v, err := s.GetByToken(ctx, token, requester)
	if err != nil {
		return Raw{}, err
	}
	return Raw{Text: v.Text, ETag: etagFor(v.Text)}, nil
}

// QR renders a PNG QR code pointing at the record's share URL.
func (s *Service) QR(ctx context.Context, token string, requester uuid.UUID) ([]byte, error) {
	recID, err := s.decode(token)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleRecord(ctx, recID, requester); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.ShareURL(token), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// ShareURL is the public link for token.
func (s *Service) ShareURL(token string) string {
	return s.baseURL + "/api/records/" + token
}

func etagFor(content string) string {
	sum := sha256.Sum256([]byte(content))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
