package encryption

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"

	"github.com/bitfsorg/assetvault/errkind"
)

// --- Helper functions ---

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	key, err := ResolveMasterKey(testKeyHex)
	require.NoError(t, err)
	p, err := NewPipeline(key)
	require.NoError(t, err)
	return p
}

// --- ResolveMasterKey tests ---

func TestResolveMasterKey_Hex(t *testing.T) {
	key, err := ResolveMasterKey(testKeyHex)
	require.NoError(t, err)
	assert.True(t, key.IsSet())

	raw, _ := hex.DecodeString(testKeyHex)
	assert.Equal(t, raw, key.b[:])
}

func TestResolveMasterKey_Passphrase(t *testing.T) {
	key, err := ResolveMasterKey("correct horse battery staple")
	require.NoError(t, err)

	r := hkdf.New(sha256.New, []byte("correct horse battery staple"), nil, []byte(HKDFInfo))
	want := make([]byte, KeyLen)
	_, err = io.ReadFull(r, want)
	require.NoError(t, err)
	assert.Equal(t, want, key.b[:])

	again, err := ResolveMasterKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, key.b, again.b, "derivation must be deterministic")
}

func TestResolveMasterKey_SixtyFourNonHexIsPassphrase(t *testing.T) {
	secret := strings.Repeat("z", 64)
	key, err := ResolveMasterKey(secret)
	require.NoError(t, err)
	assert.True(t, key.IsSet())
}

func TestResolveMasterKey_Empty(t *testing.T) {
	_, err := ResolveMasterKey("")
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, errkind.KindConfiguration, errkind.Of(err))
}

func TestNewMasterKey_WrongLength(t *testing.T) {
	_, err := NewMasterKey(make([]byte, 16))
	assert.ErrorIs(t, err, ErrMalformedKey)
	assert.Equal(t, errkind.KindConfiguration, errkind.Of(err))
}

func TestMasterKey_Redacted(t *testing.T) {
	key, err := ResolveMasterKey(testKeyHex)
	require.NoError(t, err)

	for _, s := range []string{fmt.Sprint(key), fmt.Sprintf("%v", key), fmt.Sprintf("%#v", key), fmt.Sprintf("%+v", key)} {
		assert.NotContains(t, s, "0102030405")
	}
	assert.Equal(t, "MasterKey(unset)", MasterKey{}.String())
}

// --- Pipeline tests ---

func TestNewPipeline_UnsetKey(t *testing.T) {
	_, err := NewPipeline(MasterKey{})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, errkind.KindConfiguration, errkind.Of(err))
}

func TestNilPipeline(t *testing.T) {
	var p *Pipeline

	_, err := p.Encrypt([]byte("x"))
	assert.ErrorIs(t, err, ErrNoPipeline)
	assert.Equal(t, errkind.KindConfiguration, errkind.Of(err))

	_, err = p.Decrypt([]byte("x"), make([]byte, NonceLen), make([]byte, TagLen))
	assert.ErrorIs(t, err, ErrNoPipeline)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	p := newTestPipeline(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"hello world", []byte("hello world")},
		{"binary", []byte{0x00, 0x01, 0xff, 0xfe}},
		{"one MB", bytes.Repeat([]byte("a"), 1<<20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := p.Encrypt(tt.plaintext)
			require.NoError(t, err)
			assert.Len(t, sealed.Nonce, NonceLen)
			assert.Len(t, sealed.AuthTag, TagLen)
			assert.Len(t, sealed.Ciphertext, len(tt.plaintext))

			got, err := p.Decrypt(sealed.Ciphertext, sealed.Nonce, sealed.AuthTag)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestEncrypt_CiphertextDiffersFromPlaintext(t *testing.T) {
	p := newTestPipeline(t)
	plaintext := []byte("a deliverable that must not be stored in the clear")
	sealed, err := p.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed.Ciphertext)
}

func TestEncrypt_NonceUniqueness(t *testing.T) {
	p := newTestPipeline(t)
	plaintext := []byte("same plaintext every time")

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		sealed, err := p.Encrypt(plaintext)
		require.NoError(t, err)
		nonce := string(sealed.Nonce)
		_, dup := seen[nonce]
		require.False(t, dup, "nonce reused at iteration %d", i)
		seen[nonce] = struct{}{}
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	p := newTestPipeline(t)
	sealed, err := p.Encrypt([]byte("hello world"))
	require.NoError(t, err)

	flip := func(b []byte, bit int) []byte {
		out := append([]byte(nil), b...)
		out[bit/8] ^= 1 << (bit % 8)
		return out
	}

	for bit := 0; bit < len(sealed.Ciphertext)*8; bit++ {
		got, err := p.Decrypt(flip(sealed.Ciphertext, bit), sealed.Nonce, sealed.AuthTag)
		require.ErrorIs(t, err, ErrDecryptionFailed, "ciphertext bit %d", bit)
		require.Nil(t, got)
	}
	for bit := 0; bit < TagLen*8; bit++ {
		got, err := p.Decrypt(sealed.Ciphertext, sealed.Nonce, flip(sealed.AuthTag, bit))
		require.ErrorIs(t, err, ErrDecryptionFailed, "tag bit %d", bit)
		require.Nil(t, got)
	}
	for bit := 0; bit < NonceLen*8; bit++ {
		_, err := p.Decrypt(sealed.Ciphertext, flip(sealed.Nonce, bit), sealed.AuthTag)
		require.ErrorIs(t, err, ErrDecryptionFailed, "nonce bit %d", bit)
	}
}

func TestDecrypt_CorruptedAuthTagIsIntegrityError(t *testing.T) {
	p := newTestPipeline(t)
	sealed, err := p.Encrypt([]byte("hello world"))
	require.NoError(t, err)

	badTag := bytes.Repeat([]byte{0xAA}, TagLen)
	got, err := p.Decrypt(sealed.Ciphertext, sealed.Nonce, badTag)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	assert.Equal(t, errkind.KindIntegrity, errkind.Of(err))
}

func TestDecrypt_WrongKey(t *testing.T) {
	p := newTestPipeline(t)
	sealed, err := p.Encrypt([]byte("hello world"))
	require.NoError(t, err)

	otherKey, err := ResolveMasterKey("another secret")
	require.NoError(t, err)
	other, err := NewPipeline(otherKey)
	require.NoError(t, err)

	_, err = other.Decrypt(sealed.Ciphertext, sealed.Nonce, sealed.AuthTag)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_BadParameterLengths(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Decrypt([]byte("x"), make([]byte, 8), make([]byte, TagLen))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
	assert.Equal(t, errkind.KindIntegrity, errkind.Of(err))

	_, err = p.Decrypt([]byte("x"), make([]byte, NonceLen), make([]byte, 4))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptHex(t *testing.T) {
	p := newTestPipeline(t)
	sealed, err := p.Encrypt([]byte("hello world"))
	require.NoError(t, err)

	got, err := p.DecryptHex(sealed.Ciphertext, sealed.NonceHex(), sealed.AuthTagHex())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), got)

	_, err = p.DecryptHex(sealed.Ciphertext, "not-hex", sealed.AuthTagHex())
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = p.DecryptHex(sealed.Ciphertext, sealed.NonceHex(), "zz")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
