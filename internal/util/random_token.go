package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateRandomToken : byteLength случайных байт в base64url без паддинга.
// Используется для CSRF токена и OAuth state
func GenerateRandomToken(byteLength int) (string, error) {
	bytes := make([]byte, byteLength)

	_, err := rand.Read(bytes)
	if err != nil {
		return "", LogError("[util] ошибка генерации токена", err)
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// HashTokenID : sha256(jti) в hex. В БД хранится только этот хэш
func HashTokenID(jti string) string {
	sum := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(sum[:])
}
