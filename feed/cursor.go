package feed

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const cursorVersion = 1

// ErrInvalidCursor is returned for any token that cannot be trusted. Callers start a new snapshot.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the session state carried between pages
type Cursor struct {
	Version      int       `json:"v"`
	SnapshotTs   time.Time `json:"s"`
	Sort         Sort      `json:"o"`
	FilterHash   string    `json:"f"`
	Personalized bool      `json:"w,omitempty"`
	LastKey      SortKey   `json:"k"`
	Trailing     []bool    `json:"r,omitempty"`
	Generation   int64     `json:"g,omitempty"`
}

// CursorCodec signs cursors with HMAC-SHA256 and encodes them as url-safe text
type CursorCodec struct {
	secret []byte
}

// NewCursorCodec creates a codec with the given signing secret
func NewCursorCodec(secret []byte) *CursorCodec {
	return &CursorCodec{secret: bytes.Clone(secret)}
}

// Encode serializes and signs c
func (cc *CursorCodec) Encode(c Cursor) (string, error) {
	c.Version = cursorVersion
	payload, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(cc.sign(payload)), nil
}

// Decode verifies and parses a token. Every failure wraps ErrInvalidCursor.
func (cc *CursorCodec) Decode(token string) (Cursor, error) {
	rawPayload, rawSig, ok := bytes.Cut([]byte(token), []byte("."))
	if !ok || len(rawPayload) == 0 || len(rawSig) == 0 {
		return Cursor{}, fmt.Errorf("%w: malformed token", ErrInvalidCursor)
	}

	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(string(rawPayload))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: payload: %w", ErrInvalidCursor, err)
	}
	sig, err := enc.DecodeString(string(rawSig))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: signature: %w", ErrInvalidCursor, err)
	}
	if !hmac.Equal(sig, cc.sign(payload)) {
		return Cursor{}, fmt.Errorf("%w: signature mismatch", ErrInvalidCursor)
	}

	var c Cursor
	if err := json.Unmarshal(payload, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if c.Version != cursorVersion {
		return Cursor{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidCursor, c.Version)
	}
	if c.SnapshotTs.IsZero() || c.LastKey.ID == "" {
		return Cursor{}, fmt.Errorf("%w: incomplete state", ErrInvalidCursor)
	}
	return c, nil
}

func (cc *CursorCodec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, cc.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
