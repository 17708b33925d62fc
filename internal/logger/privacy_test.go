package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashUserID(t *testing.T) {
	t.Run("produces consistent hash for same user ID", func(t *testing.T) {
		require.Equal(t, HashUserID(12345), HashUserID(12345))
	})

	t.Run("produces different hashes for different user IDs", func(t *testing.T) {
		require.NotEqual(t, HashUserID(12345), HashUserID(67890))
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		require.Len(t, HashUserID(12345), 8)
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashUserID(12345)
		hashSalt = "different-salt"
		require.NotEqual(t, hash1, HashUserID(12345))
	})
}

func TestHashChatID(t *testing.T) {
	require.Equal(t, HashChatID(12345), HashChatID(12345))
	require.NotEqual(t, HashChatID(12345), HashChatID(67890))
}

func TestSanitizeText(t *testing.T) {
	t.Run("handles empty text", func(t *testing.T) {
		require.Equal(t, "<empty>", SanitizeText(""))
	})

	t.Run("hides short text", func(t *testing.T) {
		require.Equal(t, "<5 chars>", SanitizeText("hello"))
	})

	t.Run("shows prefix for longer text", func(t *testing.T) {
		result := SanitizeText("this is a long text")
		require.Contains(t, result, "thi...")
		require.Contains(t, result, "19 chars")
	})
}

func TestMaskPAN(t *testing.T) {
	tests := []struct {
		name string
		pan  string
		want string
	}{
		{"plain digits", "4242424242424242", "****4242"},
		{"spaced", "5555 5555 5555 4444", "****4444"},
		{"dashed", "3782-822463-10005", "****0005"},
		{"too short", "12", "****"},
		{"empty", "", "****"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MaskPAN(tt.pan))
		})
	}
}

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "+227******01", MaskPhone("+22790000001"))
	require.Equal(t, "<redacted>", MaskPhone("12345"))
}

func TestInitHashSalt(t *testing.T) {
	t.Run("rejects short salt", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		require.Error(t, InitHashSalt("short"))
		require.Equal(t, originalSalt, hashSalt)
	})

	t.Run("accepts valid salt", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		validSalt := "this-is-a-valid-salt-with-at-least-32-characters"
		require.NoError(t, InitHashSalt(validSalt))
		require.Equal(t, validSalt, hashSalt)
	})
}
