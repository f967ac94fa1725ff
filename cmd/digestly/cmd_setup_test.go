package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptRecipientFillsEntry(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		"dana@example.com",
		"Dana",
		"golang, kubernetes",
		"8",
		"06:30",
		"Europe/Berlin",
		"monday, thursday",
		"danadev",
	}, "\n") + "\n")

	var out bytes.Buffer
	entry, err := promptRecipient(in, &out)
	require.NoError(t, err)

	assert.Equal(t, "dana@example.com", entry.Email)
	assert.Equal(t, "Dana", entry.Name)
	assert.Equal(t, []string{"golang", "kubernetes"}, entry.Interests)
	assert.Equal(t, 8, entry.MaxArticles)
	assert.Equal(t, "06:30", entry.ScheduleTime)
	assert.Equal(t, "Europe/Berlin", entry.Timezone)
	assert.Equal(t, []string{"monday", "thursday"}, entry.DeliveryDays)
	assert.Equal(t, "danadev", entry.GitHubUsername)
}

func TestPromptRecipientDefaults(t *testing.T) {
	in := strings.NewReader("dev@example.com\n\n\n\n\n\n\n\n")

	var out bytes.Buffer
	entry, err := promptRecipient(in, &out)
	require.NoError(t, err)

	assert.Equal(t, []string{"technology", "programming"}, entry.Interests)
	assert.Equal(t, 10, entry.MaxArticles)
	assert.Equal(t, "07:00", entry.ScheduleTime)
	assert.Equal(t, "UTC", entry.Timezone)
	assert.Empty(t, entry.GitHubUsername)
}

func TestPromptRecipientRejectsBadEmail(t *testing.T) {
	in := strings.NewReader("not-an-email\n")

	var out bytes.Buffer
	_, err := promptRecipient(in, &out)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
	assert.Nil(t, splitList(" , "))
}
