package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/gomail.v2"
)

var (
	// ErrUnknownKind is returned for an unsupported template kind
	ErrUnknownKind = errors.New("unknown email kind")
	// ErrQueueFull is returned when the dispatch queue cannot accept more jobs
	ErrQueueFull = errors.New("notification queue is full")
	// ErrDispatcherClosed is returned after Close
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Message is an outgoing email
type Message struct {
	MessageID string
	From      string
	To        string
	Subject   string
	HTML      string
	Text      string
}

// Sender delivers a rendered message
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig holds relay credentials
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender sends through an SMTP relay using STARTTLS
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Host == "" {
		cfg.Host = "smtp-relay.sendinblue.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = "noreply@tenemosfilo.com"
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

// From returns the sender address
func (s *SMTPSender) From() string {
	return s.from
}

// Send dials the relay and sends msg. gomail has no context support, so
// cancellation is only honoured before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	from := msg.From
	if from == "" {
		from = s.from
	}
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.MessageID != "" {
		m.SetHeader("Message-ID", msg.MessageID)
	}
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// MemorySender records messages instead of sending them
type MemorySender struct {
	mu   sync.Mutex
	sent []*Message
	// Fail, when set, is returned by Send
	Fail error
}

// NewMemorySender creates a new MemorySender
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	cp := *msg
	s.sent = append(s.sent, &cp)
	return nil
}

// Sent returns the recorded messages
func (s *MemorySender) Sent() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.sent...)
}

// SetFail replaces the injected failure
func (s *MemorySender) SetFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fail = err
}

// domainOf returns the domain part of an address, "tenemosfilo.com" when absent
func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return strings.TrimSuffix(address[i+1:], ">")
	}
	return "tenemosfilo.com"
}
