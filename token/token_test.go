package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/assetvault/errkind"
)

var testSecret = []byte("token-signing-secret")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s, err := NewService(testSecret, 0, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)
	assert.Equal(t, errkind.KindConfiguration, errkind.Of(err))

	s, err := NewService(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, s.DefaultTTL())
}

func TestIssueVerify(t *testing.T) {
	s, clock := newTestService(t)

	tok, exp, err := s.Issue("asset-1", 0)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(DefaultTTL), exp)

	claims, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "asset-1", claims.AssetID)
	assert.True(t, exp.Equal(claims.ExpiresAt))
}

func TestIssue_EmptyAsset(t *testing.T) {
	s, _ := newTestService(t)
	_, _, err := s.Issue("", time.Minute)
	assert.Equal(t, errkind.KindValidation, errkind.Of(err))
}

func TestVerify_Expiry(t *testing.T) {
	s, clock := newTestService(t)
	tok, _, err := s.Issue("asset-1", time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = s.Verify(tok)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Equal(t, errkind.KindToken, errkind.Of(err))
}

func TestIssue_SubSecondTTLRoundsUp(t *testing.T) {
	s, clock := newTestService(t)
	clock.Advance(700 * time.Millisecond)

	tok, exp, err := s.Issue("asset-1", 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC), exp)
	assert.True(t, exp.After(clock.t.Add(500*time.Millisecond)))

	_, err = s.Verify(tok)
	require.NoError(t, err, "a freshly issued token is valid")

	clock.Advance(time.Second)
	_, err = s.Verify(tok)
	require.NoError(t, err)

	clock.Advance(400 * time.Millisecond)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssue_WholeSecondExpiryUnchanged(t *testing.T) {
	s, clock := newTestService(t)
	_, exp, err := s.Issue("asset-1", 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(90*time.Second), exp)
}

func TestVerify_Rejects(t *testing.T) {
	s, clock := newTestService(t)
	good, _, err := s.Issue("asset-1", time.Minute)
	require.NoError(t, err)

	other, err := NewService([]byte("another-secret"), 0, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, _, err := other.Issue("asset-1", time.Minute)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "asset-1",
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "asset-1"}).SignedString(testSecret)
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name string
		tok  string
		want error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"tampered signature", tampered, ErrInvalidToken},
		{"alg none", none, ErrInvalidToken},
		{"no expiry", noExp, ErrInvalidToken},
		{"no subject", noSub, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.Verify(tt.tok)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, errkind.KindToken, errkind.Of(err))
		})
	}
}

func TestVerifyFor(t *testing.T) {
	s, _ := newTestService(t)
	tokA, _, err := s.Issue("asset-A", time.Minute)
	require.NoError(t, err)

	claims, err := s.VerifyFor(tokA, "asset-A")
	require.NoError(t, err)
	assert.Equal(t, "asset-A", claims.AssetID)

	_, err = s.VerifyFor(tokA, "asset-B")
	assert.ErrorIs(t, err, ErrAssetMismatch)
	assert.Equal(t, errkind.KindToken, errkind.Of(err))
}
