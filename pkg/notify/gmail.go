package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
	"github.com/samvad-hq/freebook-harvester/internal/logger"
)

// GmailConfig holds the sender account and recipients.
type GmailConfig struct {
	CredentialsFile string
	From            string
	To              []string
}

// mailSender sends an already encoded RFC 2822 message.
type mailSender interface {
	Send(ctx context.Context, raw string) error
}

type gmailAPI struct {
	srv *gmail.Service
}

func (g gmailAPI) Send(ctx context.Context, raw string) error {
	_, err := g.srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	return err
}

type gmailNotifier struct {
	cfg    GmailConfig
	sender mailSender
	log    logger.Logger
}

// NewGmail builds a notifier that mails through the Gmail API.
func NewGmail(ctx context.Context, cfg GmailConfig, log logger.Logger) (Notifier, error) {
	if err := validateGmail(cfg); err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gmail.GmailSendScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &gmailNotifier{cfg: cfg, sender: gmailAPI{srv: srv}, log: logger.Ensure(log)}, nil
}

func validateGmail(cfg GmailConfig) error {
	if strings.TrimSpace(cfg.CredentialsFile) == "" {
		return errors.New("gmail credentials file is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return errors.New("gmail sender is required")
	}
	if len(cfg.To) == 0 {
		return errors.New("gmail needs at least one recipient")
	}
	return nil
}

func (g *gmailNotifier) Service() domain.NotifyService { return domain.NotifyGmail }

func (g *gmailNotifier) Notify(ctx context.Context, item *domain.ClaimedItem, upload *domain.UploadResult) error {
	if item == nil {
		return errors.New("gmail notify: missing item")
	}
	return g.send(ctx, claimMessage(item, upload))
}

func (g *gmailNotifier) NotifyError(ctx context.Context, err error, scope domain.Scope) error {
	return g.send(ctx, errorMessage(err, scope))
}

func (g *gmailNotifier) send(ctx context.Context, m message) error {
	raw, err := buildMail(g.cfg.From, g.cfg.To, m)
	if err != nil {
		return err
	}
	if err := g.sender.Send(ctx, raw); err != nil {
		return fmt.Errorf("gmail send: %w", err)
	}
	g.log.InfoObj("gmail notification sent", "notify_meta", map[string]any{
		"subject": m.Title,
		"to":      g.cfg.To,
	})
	return nil
}

var mailTemplate = template.Must(template.New("mail").Parse(`<html><body>
<h2>{{.Title}}</h2>
{{if .ImageURL}}<p><img src="{{.ImageURL}}" alt="cover" style="max-width:200px"></p>{{end}}
<p style="white-space:pre-wrap">{{.Text}}</p>
{{if .URL}}<p><a href="{{.URL}}">{{.URL}}</a></p>{{end}}
{{if .Links}}<ul>{{range .Links}}<li><a href="{{.URL}}">{{.Label}}</a></li>{{end}}</ul>{{end}}
</body></html>
`))

// buildMail renders an HTML message and returns it base64url encoded, as the Gmail API expects.
func buildMail(from string, to []string, m message) (string, error) {
	var body bytes.Buffer
	if err := mailTemplate.Execute(&body, m); err != nil {
		return "", fmt.Errorf("render mail: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Title))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())

	return base64.URLEncoding.EncodeToString(msg.Bytes()), nil
}
