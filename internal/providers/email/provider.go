package email

import (
	"context"
	"errors"
)

var (
	ErrTokenExchangeFailed = errors.New("token_exchange_failed")
	ErrSendFailed          = errors.New("send_failed")
)

// Message is one transactional email ready for delivery.
type Message struct {
	To       string
	FromName string
	Subject  string
	HTML     string
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}
