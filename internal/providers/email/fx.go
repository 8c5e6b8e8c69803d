package email

import (
	"github.com/smallbiznis/eventcrew/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	// Defaults are already handled in internal/config
	return NewRelay(RelayConfig{
		ClientID:     cfg.Mail.ClientID,
		ClientSecret: cfg.Mail.ClientSecret,
		RefreshToken: cfg.Mail.RefreshToken,
		Sender:       cfg.Mail.Sender,
		TokenURL:     cfg.Mail.TokenURL,
		SendURL:      cfg.Mail.SendURL,
	}, nil, log)
}
