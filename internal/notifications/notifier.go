package notifications

import "context"

type Delivery struct {
	MessageID string
	Channel   string // "email" | "sms"
	Recipient string
	Subject   string
	Body      string
}

type Notifier interface {
	Send(ctx context.Context, d Delivery) error
}
