package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"

	"wa-chat-insights/internal/domain"
	"wa-chat-insights/internal/infra/metrics"
)

// ErrNotConfigured возвращается, если адрес отправителя не задан.
var ErrNotConfigured = errors.New("почтовый отправитель не сконфигурирован")

const base64LineLength = 76

// Config — SMTP-параметры отправителя.
type Config struct {
	Host     string
	Port     int
	Sender   string
	Password string
}

// SMTPMailer доставляет отчёт вложением через SMTP.
type SMTPMailer struct {
	cfg Config
}

var _ domain.Mailer = (*SMTPMailer)(nil)

// New создаёт отправителя.
func New(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendReport отправляет письмо с вложением получателю.
func (m *SMTPMailer) SendReport(ctx context.Context, recipient, subject string, attachment []byte, filename string) error {
	if m.cfg.Sender == "" || m.cfg.Password == "" {
		return ErrNotConfigured
	}

	msg, err := buildMessage(m.cfg.Sender, recipient, subject, attachment, filename)
	if err != nil {
		return fmt.Errorf("сборка письма: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Sender, m.cfg.Password, m.cfg.Host)

	start := time.Now()
	err = smtp.SendMail(addr, auth, m.cfg.Sender, []string{recipient}, msg)
	metrics.ObserveNetworkRequest("smtp", "send", m.cfg.Host, start, err)
	if err != nil {
		metrics.IncMailSendError()
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject string, attachment []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	textPart, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(textPart, "Ваш отчёт по анализу переписки во вложении.\r\n")

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "application/octet-stream")
	header.Set("Content-Transfer-Encoding", "base64")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	filePart, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := filePart.Write(wrapBase64(attachment)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 кодирует вложение строками по 76 символов: SMTP ограничивает
// длину строки письма 998 октетами.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var buf bytes.Buffer
	for len(encoded) > 0 {
		n := base64LineLength
		if n > len(encoded) {
			n = len(encoded)
		}
		buf.WriteString(encoded[:n])
		buf.WriteString("\r\n")
		encoded = encoded[n:]
	}
	return buf.Bytes()
}
