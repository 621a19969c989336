// Package smtp provides the SMTP transport behind the notification gateway.
package smtp

import "io"

// Client is the subset of *smtp.Client used to deliver a message.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface opens authenticated sessions with the relay.
type TransportInterface interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
