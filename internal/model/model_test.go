package model

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSuccessCodes(t *testing.T) {
	codes := DefaultSuccessCodes()

	assert.True(t, codes.For(MethodRead).Contains(http.StatusOK))
	assert.True(t, codes.For(MethodRead).Contains(http.StatusNotFound))
	assert.False(t, codes.For(MethodRead).Contains(http.StatusCreated))

	assert.True(t, codes.For(MethodWrite).Contains(http.StatusCreated))
	assert.False(t, codes.For(MethodWrite).Contains(http.StatusOK))

	assert.True(t, codes.For(MethodDelete).Contains(http.StatusAccepted))
	assert.False(t, codes.For(MethodDelete).Contains(http.StatusNotFound))

	assert.False(t, codes.For(Method("patch")).Contains(http.StatusOK))
}

func TestMethodFromHTTP(t *testing.T) {
	m, err := MethodFromHTTP(http.MethodPut)
	require.NoError(t, err)
	assert.Equal(t, MethodWrite, m)
	assert.Equal(t, http.MethodPut, m.HTTPVerb())

	_, err = MethodFromHTTP(http.MethodPost)
	assert.Error(t, err)
}

func TestEntry_TombstoneDropsValue(t *testing.T) {
	record := Entry{Value: []byte("ignored"), Timestamp: 42, IsTombstone: true}.Encode()

	decoded, err := DecodeEntry(record)
	require.NoError(t, err)
	assert.True(t, decoded.IsTombstone)
	assert.Equal(t, int64(42), decoded.Timestamp)
	assert.Nil(t, decoded.Value)
}

func TestEntry_EmptyValueIsNotTombstone(t *testing.T) {
	decoded, err := DecodeEntry(Entry{Timestamp: 7}.Encode())
	require.NoError(t, err)
	assert.False(t, decoded.IsTombstone)
	assert.Empty(t, decoded.Value)
}

func TestDecodeEntry_Malformed(t *testing.T) {
	_, err := DecodeEntry([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedEntry)
}
