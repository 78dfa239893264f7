package auth

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid short", "ab", nil},
		{"valid with digits and underscore", "user_123", nil},
		{"valid with period", "first.last", nil},
		{"valid max length", strings.Repeat("a", 32), nil},
		{"too short", "a", ErrUsernameLength},
		{"too long", strings.Repeat("a", 33), ErrUsernameLength},
		{"empty", "", ErrUsernameLength},
		{"invalid space", "user name", ErrUsernameInvalidChars},
		{"invalid symbol", "user@name", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid minimum", strings.Repeat("a", 8), nil},
		{"valid maximum", strings.Repeat("a", 128), nil},
		{"too short", strings.Repeat("a", 7), ErrPasswordTooShort},
		{"too long", strings.Repeat("a", 129), ErrPasswordTooLong},
		{"empty", "", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
