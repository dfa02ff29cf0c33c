package checksum

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_KnownVector(t *testing.T) {
	// sha256("hello world")
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	assert.Equal(t, want, Digest([]byte("hello world")))
}

func TestDigest_Empty(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, want, Digest(nil))
	assert.Equal(t, want, Digest([]byte{}))
}

func TestDigest_Deterministic(t *testing.T) {
	data := []byte(strings.Repeat("plan-render", 1000))
	assert.Equal(t, Digest(data), Digest(append([]byte(nil), data...)))
	assert.Len(t, Digest(data), 2*Size)
}

func TestVerify(t *testing.T) {
	data := []byte("deliverable")
	require.NoError(t, Verify(data, Digest(data)))

	err := Verify([]byte("deliverablE"), Digest(data))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestVerify_Malformed(t *testing.T) {
	for _, bad := range []string{"", "zz", "abcd", strings.Repeat("a", 63)} {
		t.Run(bad, func(t *testing.T) {
			assert.ErrorIs(t, Verify([]byte("x"), bad), ErrMalformedDigest)
		})
	}
}
