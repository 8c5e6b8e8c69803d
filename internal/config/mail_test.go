package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailSettingsSubjectFor(t *testing.T) {
	settings := DefaultMailSettings()
	assert.Equal(t, "You're invited to join the Launch Party team", settings.SubjectFor("Launch Party"))
}

func TestNewMailSettingsHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.yml")
	content := "mail:\n  senderName: Crew Desk\n  subject: \"Join {event}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	holder, err := NewMailSettingsHolder(Config{Mail: MailConfig{SettingsPath: path}})
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "Crew Desk", got.SenderName)
	assert.Equal(t, "Join Expo", got.SubjectFor("Expo"))
}

func TestNewMailSettingsHolderRejectsEmptySubject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mail.yml")
	require.NoError(t, os.WriteFile(path, []byte("mail:\n  subject: \"\"\n"), 0o600))

	_, err := NewMailSettingsHolder(Config{Mail: MailConfig{SettingsPath: path}})
	assert.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *MailSettingsHolder
	assert.Equal(t, DefaultMailSettings(), holder.Get())
}
