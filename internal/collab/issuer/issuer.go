// Package issuer renders and submits collaborator invite emails.
package issuer

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventcrew/internal/collab/domain"
	"github.com/smallbiznis/eventcrew/internal/config"
	"github.com/smallbiznis/eventcrew/internal/observability/metrics"
	"github.com/smallbiznis/eventcrew/internal/observability/tracing"
	"github.com/smallbiznis/eventcrew/internal/providers/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var Module = fx.Module("collab.issuer",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Repo     domain.Repository
	Mailer   email.Provider
	Settings *config.MailSettingsHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Issuer struct {
	baseURL  string
	log      *zap.Logger
	repo     domain.Repository
	mailer   email.Provider
	settings *config.MailSettingsHolder
	metrics  *metrics.Metrics
	tmpl     *template.Template
}

// inviteEmail is the template data for templates/invite.html.
type inviteEmail struct {
	EventName string
	EventDate string
	VenueName string
	RoleLabel string
	AcceptURL string
}

func New(p Params) (*Issuer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/invite.html")
	if err != nil {
		return nil, fmt.Errorf("parse invite template: %w", err)
	}
	return &Issuer{
		baseURL:  strings.TrimRight(p.Cfg.AppBaseURL, "/"),
		log:      p.Log.Named("collab.issuer"),
		repo:     p.Repo,
		mailer:   p.Mailer,
		settings: p.Settings,
		metrics:  p.Metrics,
		tmpl:     tmpl,
	}, nil
}

// AcceptURL is the stable link embedded in invite emails.
func AcceptURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/collab/accept/" + token
}

// Issue sends the invite email for inviteID. It never mutates the invite.
func (i *Issuer) Issue(ctx context.Context, inviteID string) error {
	ctx, span := tracing.Tracer("collab.issuer").Start(ctx, "collab.issue_invite")
	defer span.End()
	span.SetAttributes(attribute.String("invite.id", inviteID))

	err := i.issue(ctx, inviteID)
	i.metrics.IncInviteEmail(resultFor(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue invite failed")
		i.log.Warn("invite email not sent", zap.String("invite_id", inviteID), zap.Error(err))
		return err
	}
	i.log.Info("invite email sent", zap.String("invite_id", inviteID))
	return nil
}

func (i *Issuer) issue(ctx context.Context, inviteID string) error {
	view, err := i.lookup(ctx, inviteID)
	if err != nil {
		return err
	}

	msg, err := i.Render(*view)
	if err != nil {
		return err
	}
	return i.mailer.Send(ctx, msg)
}

func (i *Issuer) lookup(ctx context.Context, inviteID string) (*domain.InviteView, error) {
	ctx, span := tracing.Tracer("collab.issuer").Start(ctx, "collab.lookup_invite")
	defer span.End()

	id, err := snowflake.ParseString(strings.TrimSpace(inviteID))
	if err != nil || id == 0 {
		return nil, domain.ErrInviteNotFound
	}
	return i.repo.FindByID(ctx, id)
}

// Render builds the invite email for view.
func (i *Issuer) Render(view domain.InviteView) (email.Message, error) {
	settings := i.settings.Get()

	var body bytes.Buffer
	err := i.tmpl.Execute(&body, inviteEmail{
		EventName: view.EventName,
		EventDate: domain.FormatEventDate(view.EventDate),
		VenueName: view.VenueName,
		RoleLabel: domain.EmailLabel(view.Role),
		AcceptURL: AcceptURL(i.baseURL, view.InviteToken),
	})
	if err != nil {
		return email.Message{}, fmt.Errorf("render invite email: %w", err)
	}

	return email.Message{
		To:       view.Email,
		FromName: settings.SenderName,
		Subject:  settings.SubjectFor(view.EventName),
		HTML:     body.String(),
	}, nil
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSent
	case errors.Is(err, domain.ErrInviteNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, email.ErrTokenExchangeFailed):
		return metrics.ResultTokenExchange
	case errors.Is(err, email.ErrSendFailed):
		return metrics.ResultSendFailed
	default:
		return metrics.ResultInternalFailed
	}
}
