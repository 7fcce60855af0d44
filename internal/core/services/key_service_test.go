package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

const (
	testSecret       = "test-signing-secret"
	testPublicSecret = "test-public-id-secret"
)

func TestKeyService_IssueAndValidate(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	key := svc.IssueKey("user42")
	assert.True(t, svc.HasValidFormat(key))
	assert.True(t, svc.ValidateKey(key, "user42", DefaultKeyExpiry))

	userID, ok := svc.ExtractUserID(key)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("user42"), userID)
}

func TestKeyService_RejectsWrongUser(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	key := svc.IssueKey("user42")
	assert.False(t, svc.ValidateKey(key, "user43", DefaultKeyExpiry))
	assert.Equal(t, domain.KeyFailureOwnership, svc.ClassifyFailure(key, "user43", DefaultKeyExpiry))
}

func TestKeyService_RejectsTamperedSignature(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	key := svc.IssueKey("user42")
	tampered := key[:len(key)-2] + "xx"
	assert.False(t, svc.ValidateKey(tampered, "user42", DefaultKeyExpiry))
	assert.Equal(t, domain.KeyFailureSignature, svc.ClassifyFailure(tampered, "user42", DefaultKeyExpiry))
}

func TestKeyService_RejectsForeignSecret(t *testing.T) {
	issuer := NewKeyService("other-secret", testPublicSecret)
	verifier := NewKeyService(testSecret, testPublicSecret)

	key := issuer.IssueKey("user42")
	assert.Equal(t, domain.KeyFailureSignature, verifier.ClassifyFailure(key, "user42", DefaultKeyExpiry))
}

func TestKeyService_Expiry(t *testing.T) {
	issued := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	clock := issued
	svc := NewKeyServiceAt(testSecret, testPublicSecret, func() time.Time { return clock })

	key := svc.IssueKey("user42")

	clock = issued.Add(24 * time.Hour)
	assert.True(t, svc.ValidateKey(key, "user42", 24*time.Hour), "key at exactly 24h is still valid")

	clock = issued.Add(24*time.Hour + time.Second)
	assert.False(t, svc.ValidateKey(key, "user42", 24*time.Hour))
	assert.Equal(t, domain.KeyFailureExpired, svc.ClassifyFailure(key, "user42", 24*time.Hour))
}

func TestKeyService_MalformedKeys(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	for _, key := range []string{
		"",
		"user42",
		"user42:123",
		"user42:notanumber:sig",
		"user42:123:sig:extra",
		":123:sig",
		"user42:123:",
	} {
		assert.False(t, svc.HasValidFormat(key), "key %q", key)
		assert.Equal(t, domain.KeyFailureMalformed, svc.ClassifyFailure(key, "user42", DefaultKeyExpiry), "key %q", key)
	}
}

func TestKeyService_DerivePublicID(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	key := svc.IssueKey("user42")
	id := svc.DerivePublicID(key)

	assert.Len(t, string(id), PublicIDLength)
	assert.Equal(t, id, svc.DerivePublicID(key), "derivation is deterministic")
	assert.NotContains(t, string(id), ":")

	other := svc.IssueKey("user43")
	assert.NotEqual(t, id, svc.DerivePublicID(other))

	// A different derivation secret yields a different id for the same key.
	alt := NewKeyService(testSecret, "another-public-secret")
	assert.NotEqual(t, id, alt.DerivePublicID(key))
}

func TestKeyService_PublicIDNotReversible(t *testing.T) {
	svc := NewKeyService(testSecret, testPublicSecret)

	key := svc.IssueKey("user42")
	id := svc.DerivePublicID(key)
	assert.False(t, strings.Contains(key, string(id)))
	assert.False(t, strings.Contains(string(id), "user42"))
}

func TestKeyService_KeyWireFormat(t *testing.T) {
	issued := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc := NewKeyServiceAt(testSecret, testPublicSecret, func() time.Time { return issued })

	key := svc.IssueKey("user42")
	parts := strings.Split(key, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "user42", parts[0])
	assert.Equal(t, fmt.Sprintf("%d", issued.Unix()), parts[1])
	assert.NotEmpty(t, parts[2])
}
