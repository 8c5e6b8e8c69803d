package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/eventcrew/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type RelayConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Sender       string
	TokenURL     string
	SendURL      string
}

// Relay submits raw messages to an HTTP mail API authorised with an OAuth
// refresh-token grant.
type Relay struct {
	cfg    RelayConfig
	client *http.Client
	log    *zap.Logger
}

func NewRelay(cfg RelayConfig, client *http.Client, log *zap.Logger) *Relay {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{cfg: cfg, client: client, log: log.Named("email.relay")}
}

func (r *Relay) Send(ctx context.Context, msg Message) error {
	accessToken, err := r.exchange(ctx)
	if err != nil {
		return err
	}

	raw, err := Encode(r.cfg.Sender, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return r.submit(ctx, accessToken, raw)
}

func (r *Relay) exchange(ctx context.Context) (string, error) {
	ctx, span := tracing.Tracer("email").Start(ctx, "mail.token_exchange")
	defer span.End()

	if r.cfg.ClientID == "" || r.cfg.RefreshToken == "" {
		span.SetStatus(codes.Error, "missing credentials")
		return "", fmt.Errorf("%w: missing oauth credentials", ErrTokenExchangeFailed)
	}

	conf := &oauth2.Config{
		ClientID:     r.cfg.ClientID,
		ClientSecret: r.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: r.cfg.RefreshToken}).Token()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token exchange failed")
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		span.SetStatus(codes.Error, "empty access token")
		return "", fmt.Errorf("%w: empty access token", ErrTokenExchangeFailed)
	}
	return tok.AccessToken, nil
}

func (r *Relay) submit(ctx context.Context, accessToken, raw string) error {
	ctx, span := tracing.Tracer("email").Start(ctx, "mail.send")
	defer span.End()

	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.SendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send request failed")
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.log.Warn("mail relay rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail),
		)
		span.SetStatus(codes.Error, "relay rejected message")
		return fmt.Errorf("%w: relay status %d", ErrSendFailed, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
