package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"finbot/internal/logger"
)

// Mailer sends the daily buy list over SMTPS. It implements
// interfaces.Notifier.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
	to       string
}

// NewMailer configures an SMTPS sender. Gmail uses host smtp.gmail.com with
// port 465 and an app password.
func NewMailer(host string, port int, from, password, to string) *Mailer {
	return &Mailer{host: host, port: port, from: from, password: password, to: to}
}

// SendBuyList mails the signal tickers for tradeDate. An empty list still
// produces a message so the recipient knows the run happened.
func (m *Mailer) SendBuyList(ctx context.Context, tickers []string, tradeDate time.Time) error {
	subject := fmt.Sprintf("Buy signals for %s", tradeDate.Format("2006-01-02"))
	body := "No buy signals today."
	if len(tickers) > 0 {
		body = fmt.Sprintf("Buy signals for %s:\n\n%s\n\nReply with the tickers you want to buy, comma separated.",
			tradeDate.Format("2006-01-02"), strings.Join(tickers, ", "))
	}

	if err := m.send(subject, body); err != nil {
		logger.ErrorWithErr(ctx, "Failed to send buy list email", err, "to", m.to)
		return fmt.Errorf("send buy list: %w", err)
	}
	logger.Info(ctx, "Sent buy list email", "to", m.to, "tickers", len(tickers))
	return nil
}

// send speaks SMTPS directly: a TLS connection from the first byte, not
// STARTTLS, which is what port 465 expects.
func (m *Mailer) send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.host})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(m.to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, m.to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}
