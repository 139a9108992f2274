package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"github.com/go-mail/mail/v2"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-crowdfunding/app/factory"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type MailNotifier struct {
	dialer    dialer
	from      string
	templates map[string]*template.Template
	logger    logrus.FieldLogger
}

func NewMailNotifier(cfg MailConfig) (*MailNotifier, error) {
	return newMailNotifier(mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func newMailNotifier(d dialer, from string) (*MailNotifier, error) {
	templates := make(map[string]*template.Template)
	for _, notificationType := range []string{TypeDonationSucceeded, TypeDonationFailed, TypeCampaignGoalAchieved} {
		// Each type gets its own set because every file defines "subject" and "body".
		set, err := template.New(notificationType).Option("missingkey=zero").ParseFS(templateFS, "templates/"+notificationType+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", notificationType, err)
		}
		templates[notificationType] = set
	}

	return &MailNotifier{
		dialer:    d,
		from:      from,
		templates: templates,
		logger:    factory.NewModuleLogger("mail-notifier"),
	}, nil
}

func (n *MailNotifier) Send(ctx context.Context, receiver, notificationType string, params map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := n.render(notificationType, params)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", receiver)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", notificationType, receiver, err)
	}

	n.logger.WithFields(logrus.Fields{
		"receiver":          receiver,
		"notification_type": notificationType,
	}).Info("notification_sent")
	return nil
}

func (n *MailNotifier) render(notificationType string, params map[string]any) (string, string, error) {
	set, ok := n.templates[notificationType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownNotificationType, notificationType)
	}

	var subject, body bytes.Buffer
	if err := set.ExecuteTemplate(&subject, "subject", params); err != nil {
		return "", "", err
	}
	if err := set.ExecuteTemplate(&body, "body", params); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}
