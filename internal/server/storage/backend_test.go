package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocator(t *testing.T) {
	assert.Equal(t, "user_42/42_20240101_120000_a.txt", Locator(42, "42_20240101_120000_a.txt"))
}

func TestValidateLocator(t *testing.T) {
	tests := []struct {
		locator string
		ok      bool
	}{
		{"user_1/a.txt", true},
		{"user_1/sub/a.txt", true},
		{"", false},
		{"/etc/passwd", false},
		{"../secret", false},
		{"user_1/../../secret", false},
		{"user_1/./a.txt", false},
		{"user_1//a.txt", false},
		{`user_1\..\a.txt`, false},
		{"..", false},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			err := validateLocator(tt.locator)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errBadName)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("1_20240101_000000_a.txt"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, validateName(bad), errBadName, bad)
	}
}
