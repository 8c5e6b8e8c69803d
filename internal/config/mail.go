package config

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// MailSettings are presentation settings for transactional mail. They can
// change at runtime without a restart.
type MailSettings struct {
	SenderName string `mapstructure:"senderName"`
	Subject    string `mapstructure:"subject"`
}

// SubjectEventPlaceholder is replaced with the event name in MailSettings.Subject.
const SubjectEventPlaceholder = "{event}"

func DefaultMailSettings() MailSettings {
	return MailSettings{
		SenderName: "Eventcrew",
		Subject:    "You're invited to join the " + SubjectEventPlaceholder + " team",
	}
}

type MailSettingsHolder struct {
	current atomic.Value // holds MailSettings
}

// NewMailSettingsHolder reads mail.yml from the configured path (or the
// default search paths) and watches it for changes.
func NewMailSettingsHolder(cfg Config) (*MailSettingsHolder, error) {
	v := viper.New()

	if cfg.Mail.SettingsPath != "" {
		v.SetConfigFile(filepath.Clean(cfg.Mail.SettingsPath))
	} else {
		v.SetConfigName("mail")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/eventcrew")
		v.AddConfigPath(".")
	}

	defaults := DefaultMailSettings()
	v.SetDefault("mail.senderName", defaults.SenderName)
	v.SetDefault("mail.subject", defaults.Subject)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var settings MailSettings
	if err := v.UnmarshalKey("mail", &settings); err != nil {
		return nil, err
	}
	if err := validateMailSettings(settings); err != nil {
		return nil, err
	}

	holder := NewStaticMailSettings(settings)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated MailSettings
		if err := v.UnmarshalKey("mail", &updated); err != nil {
			zap.L().Warn("mail settings reload failed", zap.Error(err))
			return
		}
		if err := validateMailSettings(updated); err != nil {
			zap.L().Warn("invalid mail settings ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("mail settings reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticMailSettings returns a holder that never reloads.
func NewStaticMailSettings(settings MailSettings) *MailSettingsHolder {
	holder := &MailSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func (h *MailSettingsHolder) Get() MailSettings {
	if h == nil {
		return DefaultMailSettings()
	}
	return h.current.Load().(MailSettings)
}

// SubjectFor renders the subject line for an event.
func (s MailSettings) SubjectFor(eventName string) string {
	return strings.ReplaceAll(s.Subject, SubjectEventPlaceholder, eventName)
}

func validateMailSettings(s MailSettings) error {
	if strings.TrimSpace(s.Subject) == "" {
		return errors.New("mail.subject cannot be empty")
	}
	return nil
}
