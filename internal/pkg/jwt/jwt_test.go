package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := LoadAndBuild(Config{
		Issuer:     "ticketsync-dev",
		Audience:   "ticketsync",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	tok, jti, err := m.Generator.GenerateAccessToken("u-1", "a@b.c", "ADMIN")
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := m.Verifier.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.True(t, claims.HasRole("ADMIN"))
	assert.Equal(t, jti, claims.ID)

	_, err = m.Verifier.VerifyRefreshToken(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	t.Parallel()

	a, b := newManager(t), newManager(t)
	tok, _, err := a.Generator.GenerateRefreshToken("u-1")
	require.NoError(t, err)

	_, err = b.Verifier.Verify(tok)
	assert.Error(t, err)
}

func TestExpiresAtReadsUnverified(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	before := time.Now()
	tok, _, err := m.Generator.GenerateAccessToken("u-1", "", "USER")
	require.NoError(t, err)

	exp, err := ExpiresAt(tok)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(15*time.Minute), exp, 2*time.Second)

	_, err = ExpiresAt("not-a-token")
	assert.Error(t, err)
}

func TestLoadAndBuildFromPEM(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "priv.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(path, pemBytes, 0o600))

	m, err := LoadAndBuild(Config{PrivPath: path, Issuer: "i", Audience: "a", AccessTTL: time.Minute})
	require.NoError(t, err)

	tok, _, err := m.Generator.GenerateAccessToken("u-2", "", "USER")
	require.NoError(t, err)
	_, err = m.Verifier.VerifyAccessToken(tok)
	assert.NoError(t, err)

	garbage := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("nope"), 0o600))
	_, err = LoadRSAPrivateKeyFromPEM(garbage)
	assert.Error(t, err)
}
