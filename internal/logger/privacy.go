package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MinHashSaltLength is the shortest accepted LOG_HASH_SALT.
const MinHashSaltLength = 32

var hashSalt = "nigertransfert-development-salt-not-for-production"

// InitHashSalt sets the salt used by HashUserID and HashChatID.
func InitHashSalt(salt string) error {
	if len(salt) < MinHashSaltLength {
		return fmt.Errorf("LOG_HASH_SALT must be at least %d characters", MinHashSaltLength)
	}
	hashSalt = salt
	return nil
}

// InitHashSaltForTesting sets the salt without validation.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashUserID creates a privacy-preserving hash of a user ID.
func HashUserID(userID int64) string {
	return hashID(userID)
}

// HashChatID creates a privacy-preserving hash of a chat ID.
func HashChatID(chatID int64) string {
	return hashID(chatID)
}

func hashID(id int64) string {
	data := fmt.Sprintf("%d:%s", id, hashSalt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	if len(text) <= 10 {
		return fmt.Sprintf("<%d chars>", len(text))
	}

	return fmt.Sprintf("%s...<%d chars>", text[:3], len(text))
}

// MaskPAN keeps only the last four digits of a card number.
func MaskPAN(pan string) string {
	var digits strings.Builder
	for _, r := range pan {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return "****"
	}
	return "****" + d[len(d)-4:]
}

// MaskPhone keeps the dialling prefix and the last two digits of a phone number.
func MaskPhone(phone string) string {
	p := strings.TrimSpace(phone)
	if len(p) <= 6 {
		return "<redacted>"
	}
	return p[:4] + strings.Repeat("*", len(p)-6) + p[len(p)-2:]
}
