package mail

import "time"

// ServerConfig holds the settings for one IMAP or SMTP endpoint.
type ServerConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	// TLS selects implicit TLS; false means STARTTLS.
	TLS bool
}

// Reply is an answer to a fetched message.
type Reply struct {
	To              string
	OriginalSubject string
	Body            string
	// InReplyTo is the Message-ID of the original, used for threading.
	InReplyTo string
}

// Outgoing is a new message.
type Outgoing struct {
	To        []string
	Cc        []string
	Bcc       []string
	Subject   string
	Body      string
	InReplyTo string
}

// dialTimeout bounds connection setup for both protocols.
const dialTimeout = 30 * time.Second
