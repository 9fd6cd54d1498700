package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken возвращает bearer-токен владельца: префикс + 48 hex-символов.
// Токен показывается один раз при регистрации.
func NewToken() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return "fk_" + hex.EncodeToString(buf)
}
