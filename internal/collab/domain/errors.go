package domain

import "errors"

var (
	ErrInviteNotFound        = errors.New("invite_not_found")
	ErrInviteAlreadyResolved = errors.New("invite_already_resolved")
	ErrInviteExists          = errors.New("invite_exists")
	ErrEventNotFound         = errors.New("event_not_found")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidRole           = errors.New("invalid_role")
	ErrInvalidToken          = errors.New("invalid_token")
	ErrInvalidInvite         = errors.New("invalid_invite")
	ErrInvalidUser           = errors.New("invalid_user")
)
