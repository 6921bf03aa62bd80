package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/zalando/go-keyring"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// KeyringService groups the worker's secrets in the OS keychain
const KeyringService = "unjobsworker"

// SMTPPassword returns password when set, otherwise the secret stored in the
// OS keychain under account
func SMTPPassword(password, account string) (string, error) {
	if strings.TrimSpace(password) != "" {
		return password, nil
	}
	if strings.TrimSpace(account) != "" {
		pw, err := keyring.Get(KeyringService, account)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	return "", errors.NewConfiguration("SMTP password not found (set SMTP_PASS or store it in the keychain)", nil)
}

// EmailConfig holds SMTP delivery settings
type EmailConfig struct {
	To       string
	From     string
	Username string
	Password string
	Host     string
	Port     int
}

// SendFunc has the signature of go-smtp's SendMail
type SendFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// EmailNotifier mails new jobs as a multipart text and HTML message
type EmailNotifier struct {
	cfg  EmailConfig
	send SendFunc
	now  func() time.Time
}

// NewEmailNotifier creates an email notifier sending through go-smtp, which
// upgrades the connection with STARTTLS before authenticating
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailNotifier{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// Name returns the notifier name
func (e *EmailNotifier) Name() string {
	return "email"
}

// Notify sends one message listing jobs
func (e *EmailNotifier) Notify(ctx context.Context, jobs []crawler.Job) error {
	log := logger.ForNotifier()
	if len(jobs) == 0 {
		log.Info().Msg("No new jobs found, email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.NewNotification("email", "cancelled before sending", err)
	}

	msg, err := e.Compose(jobs)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := sasl.NewPlainClient("", e.cfg.Username, e.cfg.Password)
	if err := e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, bytes.NewReader(msg)); err != nil {
		return errors.NewNotification("email", "failed to send to "+e.cfg.To, err)
	}

	log.Info().Str("to", e.cfg.To).Int("jobs", len(jobs)).Msg("Email sent")
	return nil
}

// Compose builds the RFC 5322 message
func (e *EmailNotifier) Compose(jobs []crawler.Job) ([]byte, error) {
	text, err := TextBody(jobs)
	if err != nil {
		return nil, errors.NewNotification("email", "failed to render text body", err)
	}
	htmlPart, err := HTMLBody(jobs)
	if err != nil {
		return nil, errors.NewNotification("email", "failed to render html body", err)
	}

	var h mail.Header
	h.SetDate(e.now())
	h.SetAddressList("From", []*mail.Address{{Address: e.cfg.From}})
	h.SetAddressList("To", []*mail.Address{{Address: e.cfg.To}})
	h.SetSubject(Subject(len(jobs)))
	if err := h.GenerateMessageID(); err != nil {
		return nil, errors.NewNotification("email", "failed to generate message id", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, errors.NewNotification("email", "failed to create message", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, errors.NewNotification("email", "failed to create body", err)
	}
	for _, part := range []struct{ contentType, body string }{
		{"text/plain", text},
		{"text/html", htmlPart},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(ph)
		if err != nil {
			return nil, errors.NewNotification("email", fmt.Sprintf("failed to create %s part", part.contentType), err)
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			return nil, errors.NewNotification("email", fmt.Sprintf("failed to write %s part", part.contentType), err)
		}
		w.Close()
	}
	tw.Close()
	if err := mw.Close(); err != nil {
		return nil, errors.NewNotification("email", "failed to finish message", err)
	}
	return buf.Bytes(), nil
}
