package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateFileToken("abc.pdf", "lecture1.pdf", "application/pdf", secret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseFileToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "abc.pdf", claims.FileKey)
	require.Equal(t, "lecture1.pdf", claims.DownloadAs)

	_, err = ParseFileToken(token, []byte("other"))
	require.Error(t, err)
}

func TestFileTokenExpired(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateFileToken("abc.pdf", "", "", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseFileToken(token, secret)
	require.Error(t, err)
}
