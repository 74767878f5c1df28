package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)

	b, err := ParseKey(hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.Equal(t, byte(0xab), b[0])

	b, err = ParseKey("0x" + hexKey)
	require.NoError(t, err)
	assert.Len(t, b, 32)

	raw := make([]byte, 32)
	raw[0] = 9
	b, err = ParseKey(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	b, err = ParseKey("  ")
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = ParseKey("abcd")
	assert.ErrorContains(t, err, "length must be 32")

	_, err = ParseKey("not a key!")
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	key, err := ParseKey(strings.Repeat("01", 32))
	require.NoError(t, err)

	s, err := Open(OpenOptions{Path: t.TempDir(), EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetString("wallet/WALLET_KEY")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetString("wallet/WALLET_KEY", "[1,2,3]"))
	require.NoError(t, s.SetString("wallet/EMPTY", ""))
	require.NoError(t, s.SetString("other/X", "y"))

	v, ok, err := s.GetString(" wallet/WALLET_KEY ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[1,2,3]", v)

	v, ok, err = s.GetString("wallet/EMPTY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)

	keys, err := s.Keys("wallet/")
	require.NoError(t, err)
	assert.Equal(t, []string{"wallet/EMPTY", "wallet/WALLET_KEY"}, keys)

	_, _, err = s.GetString("")
	assert.Error(t, err)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, _, err = s.GetString("a")
	assert.ErrorIs(t, err, ErrNotOpened)
	assert.ErrorIs(t, s.SetString("a", "b"), ErrNotOpened)

	_, err = Open(OpenOptions{})
	assert.Error(t, err)
}
