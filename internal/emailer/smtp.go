package emailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/services/dispatch"
)

//go:embed templates/daily_quote.html
var templatesFS embed.FS

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers a chunk by sending one message per recipient. The chunk
// stops at the first failed message and the call is reported as an error.
type SMTPSender struct {
	User     string
	Host     string
	Port     string
	Password string

	tmpl     *template.Template
	sendMail sendMailFunc
	logger   zerolog.Logger
}

func NewSMTPSender(host, port, user, password string, logger zerolog.Logger) (*SMTPSender, error) {
	if host == "" || port == "" {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	tmpl, err := template.ParseFS(templatesFS, "templates/daily_quote.html")
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "SMTPSender").Logger()
	return &SMTPSender{
		User:     user,
		Host:     host,
		Port:     port,
		Password: password,
		tmpl:     tmpl,
		sendMail: smtp.SendMail,
		logger:   logger,
	}, nil
}

func (e *SMTPSender) SendBulk(ctx context.Context, chunk dispatch.Chunk) (dispatch.ChunkResult, error) {
	var auth smtp.Auth
	if e.User != "" {
		auth = smtp.PlainAuth("", e.User, e.Password, e.Host)
	}
	addr := e.Host + ":" + e.Port

	for i, r := range chunk.Recipients {
		if err := ctx.Err(); err != nil {
			return dispatch.ChunkResult{}, err
		}

		var body bytes.Buffer
		if err := e.tmpl.Execute(&body, r.DynamicData); err != nil {
			return dispatch.ChunkResult{}, fmt.Errorf("render message: %w", err)
		}

		msg := e.compose(chunk, r.Email, body.String())
		if err := e.sendMail(addr, auth, chunk.Envelope.FromEmail, []string{r.Email}, []byte(msg)); err != nil {
			e.logger.Error().Ctx(ctx).Err(err).
				Int("sent_before_failure", i).
				Msg("smtp send failed")
			return dispatch.ChunkResult{}, err
		}
	}

	e.logger.Debug().Ctx(ctx).Int("recipients", len(chunk.Recipients)).Msg("smtp chunk sent")
	return dispatch.ChunkResult{Success: true}, nil
}

func (e *SMTPSender) compose(chunk dispatch.Chunk, to, body string) string {
	env := chunk.Envelope
	from := env.FromEmail
	if env.FromName != "" {
		from = fmt.Sprintf("%s <%s>", env.FromName, env.FromEmail)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	if env.ReplyToEmail != "" {
		b.WriteString("Reply-To: " + env.ReplyToEmail + "\r\n")
	}
	b.WriteString("Subject: " + env.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)
	return b.String()
}
