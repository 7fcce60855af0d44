package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// BroadcasterKey is the parsed form of a signed stream key. The wire format is
// "<userId>:<issuedAt>:<signature>" where the signature covers the first two
// fields. Keys are never persisted; they are verifiable from their own fields
// plus the server secret.
type BroadcasterKey struct {
	UserID    UserID
	IssuedAt  int64 // unix seconds
	Signature string
}

func (k BroadcasterKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.UserID, k.IssuedAt, k.Signature)
}

// SigningInput returns the portion of the key covered by the signature.
func (k BroadcasterKey) SigningInput() string {
	return fmt.Sprintf("%s:%d", k.UserID, k.IssuedAt)
}

// ParseBroadcasterKey splits a wire-form key into its triplet. It performs the
// cheap structural check only; signature verification is the key service's job.
func ParseBroadcasterKey(raw string) (BroadcasterKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return BroadcasterKey{}, fmt.Errorf("stream key must have three colon-separated fields, got %d", len(parts))
	}
	if parts[0] == "" || parts[2] == "" {
		return BroadcasterKey{}, fmt.Errorf("stream key has empty fields")
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return BroadcasterKey{}, fmt.Errorf("stream key timestamp is not numeric: %w", err)
	}
	return BroadcasterKey{
		UserID:    UserID(parts[0]),
		IssuedAt:  ts,
		Signature: parts[2],
	}, nil
}

// KeyFailure names the category of a key rejection. Categories are safe to
// show to the broadcaster; they never carry key material.
type KeyFailure string

const (
	KeyOK               KeyFailure = ""
	KeyFailureMalformed KeyFailure = "malformed"
	KeyFailureOwnership KeyFailure = "ownership_mismatch"
	KeyFailureSignature KeyFailure = "signature_mismatch"
	KeyFailureExpired   KeyFailure = "expired"
)

func (f KeyFailure) Message() string {
	switch f {
	case KeyOK:
		return "stream key is valid"
	case KeyFailureMalformed:
		return "stream key is malformed"
	case KeyFailureOwnership:
		return "stream key belongs to a different user"
	case KeyFailureSignature:
		return "stream key signature does not verify"
	case KeyFailureExpired:
		return "stream key has expired"
	default:
		return "stream key rejected"
	}
}
