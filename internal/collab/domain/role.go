package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTicketing Role = "ticketing"
	RoleCheckIn   Role = "check_in"
	RoleViewOnly  Role = "view_only"
)

const NeutralRoleColor = "neutral"

// RoleInfo is the display metadata for a role.
type RoleInfo struct {
	Role        string `json:"role"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Known       bool   `json:"known"`
}

var roleCatalog = map[Role]RoleInfo{
	RoleAdmin: {
		Label:       "Admin",
		Description: "full access to event settings, staff and reports",
		Color:       "purple",
	},
	RoleTicketing: {
		Label:       "Ticketing",
		Description: "manage ticket types, orders and refunds",
		Color:       "blue",
	},
	RoleCheckIn: {
		Label:       "Check-in",
		Description: "scan tickets and manage guest check-in",
		Color:       "green",
	},
	RoleViewOnly: {
		Label:       "View only",
		Description: "read-only access to event details and reports",
		Color:       "gray",
	},
}

func ValidRole(raw string) bool {
	_, ok := roleCatalog[Role(strings.TrimSpace(raw))]
	return ok
}

// DescribeRole never fails: unknown roles keep their raw value with neutral styling.
func DescribeRole(raw string) RoleInfo {
	info, ok := roleCatalog[Role(raw)]
	if !ok {
		return RoleInfo{
			Role:        raw,
			Label:       raw,
			Description: "collaborator access to this event",
			Color:       NeutralRoleColor,
		}
	}
	info.Role = raw
	info.Known = true
	return info
}

// EmailLabel is the role line used in invite emails, e.g.
// "Check-in — scan tickets and manage guest check-in".
func EmailLabel(raw string) string {
	info := DescribeRole(raw)
	if !info.Known {
		return HumanizeRole(raw)
	}
	return info.Label + " — " + info.Description
}

// HumanizeRole turns "stage_manager" into "Stage Manager".
func HumanizeRole(raw string) string {
	spaced := strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(raw)), " ")
	if spaced == "" {
		return "Collaborator"
	}
	return cases.Title(language.English).String(spaced)
}
