// Package mail envia os emails de redefinição de senha.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ericoliveiras/gestao-clientes/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New devolve o SMTPMailer quando há host configurado, ou o LogMailer.
func New(cfg config.MailConfig, log *zap.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{log: log}
	}
	return &SMTPMailer{cfg: cfg}
}

type SMTPMailer struct {
	cfg config.MailConfig
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("falha ao enviar email para %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// LogMailer só registra o email no log, para desenvolvimento.
type LogMailer struct {
	log *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("Email não enviado (SMTP não configurado)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
