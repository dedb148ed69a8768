package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bcrypt's minimum cost keeps these fast.
func cheapPasswords() *PasswordService {
	return newPasswordServiceWithCost(4)
}

// =========================================================================
// SIGN-UP RULES
// =========================================================================

func TestCheckStrength_SignUpForm(t *testing.T) {
	ps := cheapPasswords()

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"one short of the form minimum", "lobol", ErrPasswordTooShort},
		{"form minimum", "lobola", nil},
		{"accented names count as letters", "Thandé", nil},
		{"spaces count", "we do ", nil},
		{"bcrypt limit", strings.Repeat("r", 72), nil},
		{"past bcrypt limit", strings.Repeat("r", 73), ErrPasswordTooLong},
		// Six runes but 18 bytes; the minimum is in characters.
		{"six euro signs", "€€€€€€", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.CheckStrength(tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHash_RefusesWhatBcryptWouldTruncate(t *testing.T) {
	ps := cheapPasswords()

	// 24 three-byte runes fill the limit exactly; one more overflows it.
	fits := strings.Repeat("€", 24)
	_, err := ps.Hash(fits)
	require.NoError(t, err)

	_, err = ps.Hash(fits + "x")
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

// =========================================================================
// LOGIN
// =========================================================================

func TestVerify_GuestLogin(t *testing.T) {
	ps := cheapPasswords()

	stored, err := ps.Hash("see-you-at-the-vineyard")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "$2a$04$"), "cost is encoded in the stored hash")

	tests := []struct {
		name    string
		attempt string
		wantErr error
	}{
		{"exact", "see-you-at-the-vineyard", nil},
		{"different case", "See-You-At-The-Vineyard", ErrInvalidPassword},
		{"trailing space from autofill", "see-you-at-the-vineyard ", ErrInvalidPassword},
		{"blank", "", ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(stored, tt.attempt)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerify_CorruptStoredHashIsNotAMismatch(t *testing.T) {
	err := cheapPasswords().Verify("imported-from-spreadsheet", "lobola")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPassword, "a broken row must surface as a server fault")
}

func TestHash_TwoGuestsSamePassword(t *testing.T) {
	ps := cheapPasswords()

	first, err := ps.Hash("wedding2026")
	require.NoError(t, err)
	second, err := ps.Hash("wedding2026")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salts differ per guest")
	assert.NoError(t, ps.Verify(first, "wedding2026"))
	assert.NoError(t, ps.Verify(second, "wedding2026"))
}

// =========================================================================
// RESET LINKS
// =========================================================================

func TestFingerprint_RetiresResetLinkOnPasswordChange(t *testing.T) {
	ps := cheapPasswords()
	tokens, err := NewTokenService("fingerprint-test-secret", 0)
	require.NoError(t, err)

	before, err := ps.Hash("forgot-this-one")
	require.NoError(t, err)
	link, err := tokens.GenerateReset("guest-1", Fingerprint(before))
	require.NoError(t, err)

	_, fp, err := tokens.ValidateReset(link)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(before), fp, "link matches while the password is unchanged")
	assert.Len(t, fp, 16)

	after, err := ps.Hash("remembered-now")
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(after), fp, "link no longer matches after the change")
}
