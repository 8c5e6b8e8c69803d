// Package acceptance runs the invite acceptance page for one client context.
//
// A page resolves its token once on load and then listens for sign-in
// notifications for as long as it is mounted. Both paths may accept the
// invite; the pending-token marker and conditional status writes keep the
// outcome to a single acceptance.
package acceptance

import (
	"errors"
	"net/url"

	"github.com/smallbiznis/eventcrew/internal/collab/domain"
)

type Step string

const (
	StepLoading          Step = "loading"
	StepInvalid          Step = "invalid"
	StepDone             Step = "done"
	StepPreview          Step = "preview"
	StepAcceptedRedirect Step = "accepted_redirect"
	StepDeclined         Step = "declined"
)

const (
	ErrorLookupFailed = "lookup_failed"
	ErrorAcceptFailed = "accept_failed"
)

const (
	ReasonAccepted = "accepted"
	ReasonSignIn   = "sign_in"
	ReasonFallback = "fallback"
)

var (
	ErrPageClosed       = errors.New("page_closed")
	ErrPageNotFound     = errors.New("page_not_found")
	ErrActionNotAllowed = errors.New("action_not_allowed")
	ErrInvalidClient    = errors.New("invalid_client_id")
)

// Snapshot is the rendered state of a page.
type Snapshot struct {
	Step       Step           `json:"step"`
	Error      string         `json:"error,omitempty"`
	Invite     *InviteSummary `json:"invite,omitempty"`
	RedirectTo string         `json:"redirect_to,omitempty"`
}

// InviteSummary is the display data of a resolved invite.
type InviteSummary struct {
	EventID   string          `json:"event_id"`
	EventName string          `json:"event_name"`
	EventDate string          `json:"event_date"`
	VenueName string          `json:"venue_name,omitempty"`
	Status    domain.Status   `json:"status"`
	Role      domain.RoleInfo `json:"role"`
}

type Navigation struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

func summarize(view *domain.InviteView) *InviteSummary {
	if view == nil {
		return nil
	}
	return &InviteSummary{
		EventID:   view.EventID.String(),
		EventName: view.EventName,
		EventDate: domain.FormatEventDate(view.EventDate),
		VenueName: view.VenueName,
		Status:    view.Status,
		Role:      domain.DescribeRole(view.Role),
	}
}

func DashboardPath(eventID string) string {
	return "/dashboard/" + url.PathEscape(eventID)
}

func AcceptPath(token string) string {
	return "/collab/accept/" + url.PathEscape(token)
}

// SignInURL appends next as the post sign-in return target.
func SignInURL(signInPath, next string) string {
	return signInPath + "?next=" + url.QueryEscape(next)
}
