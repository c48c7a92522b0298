package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Client sends alert emails over SMTP. It supports implicit TLS (465),
// STARTTLS (587) and plain connections, and authenticates with LOGIN
// first because Office365 rejects PLAIN.
type Client struct {
	config Config
	logger *slog.Logger
}

// Config holds SMTP client configuration.
type Config struct {
	Host      string
	Port      int
	Security  string // tls, ssl, none
	FromEmail string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Message is a single outbound email.
type Message struct {
	Subject    string
	TextBody   string
	HTMLBody   string
	Recipients []string
}

// NewClient creates an SMTP client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Security == "" {
		cfg.Security = "tls"
	}
	return &Client{config: cfg, logger: logger}
}

// IsConfigured reports whether the client can deliver mail.
func (c *Client) IsConfigured() bool {
	return c.config.Host != "" && c.config.Username != ""
}

// Send delivers an email to the message recipients.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	if !c.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(c.config.FromEmail); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, rcpt := range msg.Recipients {
		if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
			return fmt.Errorf("add recipient %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("open data writer: %w", err)
	}
	if _, err := wc.Write(buildMIME(c.config.FromEmail, msg)); err != nil {
		wc.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close data writer: %w", err)
	}

	c.logger.Info("email sent",
		"subject", msg.Subject,
		"recipients", len(msg.Recipients),
	)

	return client.Quit()
}

// TestConnection dials, negotiates TLS and authenticates without sending.
func (c *Client) TestConnection(ctx context.Context) error {
	if !c.IsConfigured() {
		return fmt.Errorf("smtp not configured")
	}
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return client.Close()
}

// connect dials the server, upgrades to TLS per the security mode and
// authenticates. The caller owns the returned client.
func (c *Client) connect(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	security := strings.ToLower(c.config.Security)
	dialer := net.Dialer{Timeout: c.config.Timeout}

	var conn net.Conn
	var err error
	switch security {
	case "ssl", "implicit":
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, &tls.Config{ServerName: c.config.Host})
	default:
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to smtp server: %w", err)
	}

	client, err := smtp.NewClient(conn, c.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	if security == "tls" || security == "starttls" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.config.Host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		} else if security == "starttls" {
			client.Close()
			return nil, fmt.Errorf("server does not support STARTTLS")
		}
	}

	if err := c.authenticate(client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) authenticate(client *smtp.Client) error {
	ok, methods := client.Extension("AUTH")
	if !ok {
		return fmt.Errorf("server offers no authentication")
	}

	var lastErr error
	if strings.Contains(methods, "LOGIN") {
		if err := client.Auth(LoginAuth(c.config.Username, c.config.Password)); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if strings.Contains(methods, "PLAIN") {
		if err := client.Auth(smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("authentication failed: %w", lastErr)
	}
	return fmt.Errorf("no supported authentication method")
}

// buildMIME builds the raw message, multipart when an HTML body exists.
func buildMIME(from string, m *Message) []byte {
	const boundary = "==REPORTCENTER_BOUNDARY=="

	var b strings.Builder
	fmt.Fprintf(&b, "From: Report Center <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(m.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	if m.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(m.TextBody)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.TextBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(m.HTMLBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

type loginAuth struct {
	username, password string
}

// LoginAuth implements the LOGIN mechanism required by some providers.
func LoginAuth(username, password string) smtp.Auth {
	return &loginAuth{username, password}
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "LOGIN", []byte{}, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		switch string(fromServer) {
		case "Username:":
			return []byte(a.username), nil
		case "Password:":
			return []byte(a.password), nil
		default:
			return nil, fmt.Errorf("unknown server challenge: %s", fromServer)
		}
	}
	return nil, nil
}
