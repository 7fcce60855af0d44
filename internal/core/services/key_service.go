package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
)

// DefaultKeyExpiry is how long an issued broadcaster key stays valid.
const DefaultKeyExpiry = 24 * time.Hour

// PublicIDLength is the truncation applied to the derived public id. The
// collision risk of truncating a keyed hash this far is a documented open
// question; no uniqueness retry is attempted.
const PublicIDLength = 16

type keyService struct {
	secret       []byte // signs broadcaster keys
	publicSecret []byte // derives public ids, distinct from secret
	now          func() time.Time
}

func NewKeyService(secret, publicSecret string) ports.KeyService {
	return &keyService{
		secret:       []byte(secret),
		publicSecret: []byte(publicSecret),
		now:          time.Now,
	}
}

// NewKeyServiceAt is NewKeyService with an injectable clock.
func NewKeyServiceAt(secret, publicSecret string, now func() time.Time) ports.KeyService {
	return &keyService{
		secret:       []byte(secret),
		publicSecret: []byte(publicSecret),
		now:          now,
	}
}

func (s *keyService) sign(input string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// IssueKey always succeeds; the timestamp is the wall clock at issuance.
func (s *keyService) IssueKey(userID domain.UserID) string {
	key := domain.BroadcasterKey{
		UserID:   userID,
		IssuedAt: s.now().Unix(),
	}
	key.Signature = s.sign(key.SigningInput())
	return key.String()
}

// HasValidFormat is the cheap structural check callers must run before any
// crypto validation or repository lookup.
func (s *keyService) HasValidFormat(key string) bool {
	_, err := domain.ParseBroadcasterKey(key)
	return err == nil
}

// ExtractUserID parses without verifying the signature. The result narrows a
// search space only; it is never an authorization decision.
func (s *keyService) ExtractUserID(key string) (domain.UserID, bool) {
	parsed, err := domain.ParseBroadcasterKey(key)
	if err != nil {
		return "", false
	}
	return parsed.UserID, true
}

// ValidateKey fails closed: malformed keys, ownership mismatch, bad signature
// and expiry all return false.
func (s *keyService) ValidateKey(key string, expected domain.UserID, expiry time.Duration) bool {
	return s.ClassifyFailure(key, expected, expiry) == domain.KeyOK
}

// ClassifyFailure names the rejection category so a broadcaster gets an
// explicit reason without any key material leaking. Checks are ordered
// cheapest first.
func (s *keyService) ClassifyFailure(key string, expected domain.UserID, expiry time.Duration) domain.KeyFailure {
	parsed, err := domain.ParseBroadcasterKey(key)
	if err != nil {
		return domain.KeyFailureMalformed
	}
	if parsed.UserID != expected {
		return domain.KeyFailureOwnership
	}
	want := s.sign(parsed.SigningInput())
	if !hmac.Equal([]byte(want), []byte(parsed.Signature)) {
		return domain.KeyFailureSignature
	}
	if expiry <= 0 {
		expiry = DefaultKeyExpiry
	}
	age := s.now().Unix() - parsed.IssuedAt
	if age > int64(expiry/time.Second) {
		return domain.KeyFailureExpired
	}
	return domain.KeyOK
}

// DerivePublicID maps a broadcaster key to its shareable, non-reversible
// viewer-facing id. Deterministic: the same key always yields the same id.
func (s *keyService) DerivePublicID(key string) domain.PublicStreamID {
	mac := hmac.New(sha256.New, s.publicSecret)
	fmt.Fprint(mac, key)
	id := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return domain.PublicStreamID(id[:PublicIDLength])
}
