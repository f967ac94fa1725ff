package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"dev@example.com", false},
		{"a@b.co", false},
		{"", true},
		{"no-at-sign", true},
		{"@example.com", true},
		{"dev@", true},
		{"dev@nodot", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateScheduleTime(t *testing.T) {
	assert.NoError(t, ValidateScheduleTime("07:00"))
	assert.NoError(t, ValidateScheduleTime("23:59"))
	assert.Error(t, ValidateScheduleTime("24:00"))
	assert.Error(t, ValidateScheduleTime("7am"))
	assert.Error(t, ValidateScheduleTime(""))
}

func TestNormalizeInterests(t *testing.T) {
	got := NormalizeInterests([]string{"  Go ", "", "Machine Learning", "go"})
	assert.Equal(t, []string{"go", "machine learning", "go"}, got)
}

func TestValidURL(t *testing.T) {
	assert.True(t, ValidURL("https://example.com"))
	assert.True(t, ValidURL("http://example.com"))
	assert.False(t, ValidURL("ftp://example.com"))
	assert.False(t, ValidURL("example.com"))
}
