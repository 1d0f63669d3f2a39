package services

import "context"

// Message is an outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers outbound email. Implementations return an error when the
// message was not accepted for delivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
