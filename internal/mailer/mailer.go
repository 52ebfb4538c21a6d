package mailer

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"github.com/wneessen/go-mail"

	"visitordesk/internal/visitor"
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// PhotoOpener resolves a stored photo reference for attaching.
type PhotoOpener interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

type deliverer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender delivers workflow emails over SMTP. Each call dials, sends once and returns the result.
type Sender struct {
	client deliverer
	from   string
	photos PhotoOpener
}

// New builds an SMTP sender using STARTTLS and PLAIN auth.
func New(cfg Config, photos PhotoOpener) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: create smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Sender{client: client, from: from, photos: photos}, nil
}

// SendSubmissionNotice emails the host with the visitor details, decision links and photo.
func (s *Sender) SendSubmissionNotice(ctx context.Context, e *visitor.Entry, links visitor.Links) error {
	msg, err := s.newMessage(e.PersonToMeet, subjectSubmission)
	if err != nil {
		return err
	}

	html, err := renderSubmissionHTML(e, links)
	if err != nil {
		return fmt.Errorf("mailer: render submission: %w", err)
	}
	msg.SetBodyString(mail.TypeTextPlain, renderSubmissionText(e, links))
	msg.AddAlternativeString(mail.TypeTextHTML, html)

	if err := s.attachPhoto(ctx, msg, e.Photo); err != nil {
		log.Printf("mailer: sending notice for %s without photo: %v", e.ID, err)
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send submission notice: %w", err)
	}
	log.Printf("mailer: submission notice for %s sent to %s", e.ID, e.PersonToMeet)
	return nil
}

// SendOutcomeNotice emails the visitor the decision.
func (s *Sender) SendOutcomeNotice(ctx context.Context, e *visitor.Entry) error {
	subject, body, err := outcomeContent(e)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	msg, err := s.newMessage(e.Email, subject)
	if err != nil {
		return err
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send %s notice: %w", e.Status, err)
	}
	log.Printf("mailer: %s notice for %s sent to %s", e.Status, e.ID, e.Email)
	return nil
}

func (s *Sender) newMessage(to, subject string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", s.from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mailer: invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	return msg, nil
}

func (s *Sender) attachPhoto(ctx context.Context, msg *mail.Msg, ref string) error {
	if s.photos == nil || ref == "" {
		return nil
	}
	rc, err := s.photos.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer rc.Close()
	// AttachReader buffers the content, so rc can be closed once it returns.
	return msg.AttachReader(path.Base(ref), rc)
}
