package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const widgetKeyPrefix = "wk_"

var ErrInvalidWidgetKey = errors.New("invalid widget key")

// NewWidgetKey mints an embed key for a chatbot widget. Only the bcrypt hash
// is stored; the plain key is shown to the owner once.
func NewWidgetKey() (plain, hash string, err error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	plain = widgetKeyPrefix + hex.EncodeToString(b)
	hash, err = HashWidgetKey(plain)
	return plain, hash, err
}

func HashWidgetKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(b), err
}

func CheckWidgetKey(hash, key string) error {
	if hash == "" || !strings.HasPrefix(key, widgetKeyPrefix) {
		return ErrInvalidWidgetKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrInvalidWidgetKey
	}
	return nil
}
