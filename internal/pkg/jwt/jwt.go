package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// FileClaims grants read access to one stored file.
type FileClaims struct {
	FileKey     string `json:"fk"`
	DownloadAs  string `json:"dn,omitempty"`
	ContentType string `json:"ct,omitempty"`
	jwtlib.RegisteredClaims
}

func GenerateFileToken(fileKey, downloadAs, contentType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := FileClaims{
		FileKey:     fileKey,
		DownloadAs:  downloadAs,
		ContentType: contentType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseFileToken(tokenString string, secret []byte) (*FileClaims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &FileClaims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*FileClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.FileKey == "" {
		return nil, errors.New("missing file key")
	}
	return claims, nil
}
