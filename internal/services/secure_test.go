package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedEncoder_TextRoundTrip(t *testing.T) {
	enc, err := NewSealedEncoder(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	for _, plain := range []string{"Sales Revenue", "Gastos de Nómina", ""} {
		sealed, err := enc.EncodeText(plain)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		if plain != "" {
			assert.NotContains(t, sealed, plain)
		}

		got, err := enc.DecodeText(sealed)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestSealedEncoder_RandomNonce(t *testing.T) {
	enc, err := NewEphemeralEncoder()
	require.NoError(t, err)

	a, err := enc.EncodeText("Rent")
	require.NoError(t, err)
	b, err := enc.EncodeText("Rent")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSealedEncoder_JSONRoundTrip(t *testing.T) {
	enc, err := NewEphemeralEncoder()
	require.NoError(t, err)
	in := lineMetadata{Row: 4, Original: "($25,000)", Subtotal: true}

	sealed, err := enc.EncodeJSON(in)
	require.NoError(t, err)
	var out lineMetadata
	require.NoError(t, enc.DecodeJSON(sealed, &out))

	assert.Equal(t, in, out)
}

func TestSealedEncoder_RejectsForeignValues(t *testing.T) {
	enc, err := NewEphemeralEncoder()
	require.NoError(t, err)
	other, err := NewEphemeralEncoder()
	require.NoError(t, err)
	sealed, err := other.EncodeText("Rent")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{"plain text", "Rent"},
		{"bad base64", sealedPrefix + "%%%"},
		{"too short", sealedPrefix + "AAAA"},
		{"other key", sealed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.DecodeText(tt.value)
			assert.ErrorIs(t, err, ErrUndecodable)
		})
	}
}

func TestNewSealedEncoder_KeySize(t *testing.T) {
	_, err := NewSealedEncoder([]byte("short"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")
}
