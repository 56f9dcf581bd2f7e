package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/config"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/domain"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/mailqueue"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

type mailKind struct {
	template string
	subject  string
}

var mailKinds = map[string]mailKind{
	domain.MailTypeWelcome:             {"templates/welcome.html", "CampusHB - Welcome"},
	domain.MailTypeApplicationReceived: {"templates/application_received.html", "CampusHB - Application received"},
	domain.MailTypeResetPassword:       {"templates/reset_password.html", "CampusHB - Reset your password"},
}

// errPermanent marks messages that will never succeed and must not be requeued.
var errPermanent = errors.New("permanent failure")

func parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(mailKinds))
	for mailType, kind := range mailKinds {
		tmpl, err := template.ParseFS(templateFS, kind.template)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind.template, err)
		}
		templates[mailType] = tmpl
	}
	return templates, nil
}

func buildMessage(from string, mm *domain.MailMessage, templates map[string]*template.Template) (*mail.Msg, error) {
	kind, ok := mailKinds[mm.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported mail type %q", errPermanent, mm.Type)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := m.To(mm.To); err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := m.SetBodyHTMLTemplate(templates[mm.Type], mm.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	m.Subject(kind.subject)
	return m, nil
}

func main() {
	/**********************************************
	 * logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * config
	 **********************************************/
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("failed to read .env file", "error", err)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * templates
	 **********************************************/
	templates, err := parseTemplates()
	if err != nil {
		logger.Error("failed to parse mail templates", "error", err)
		return
	}

	/**********************************************
	 * mail client
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("failed to create mail client", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("failed to connect to smtp server", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	if err := mailqueue.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
		logger.Error("failed to declare queue", slog.String("error", err.Error()))
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgs, err := ch.Consume(
		cfg.RabbitMQ.Queue,
		"",    // consumer tag, assigned by the broker
		false, // manual ack
		false, // exclusive
		false, // no-local, unsupported by rabbitmq
		false, // no-wait
		nil,
	)
	if err != nil {
		logger.Error("failed to consume queue", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("delivery channel closed")
					return
				}

				mailMessage := domain.MailMessage{}
				if err := json.Unmarshal(msg.Body, &mailMessage); err != nil {
					logger.Error("failed to decode mail message", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}
				logger.Info("mail message received", "type", mailMessage.Type, "to", mailMessage.To)

				m, err := buildMessage(cfg.Email.SMTP.Username, &mailMessage, templates)
				if err != nil {
					logger.Error("failed to build mail", "type", mailMessage.Type, slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
					continue
				}

				if err := client.DialAndSend(m); err != nil {
					logger.Error("failed to send mail", "to", mailMessage.To, slog.String("error", err.Error()))
					_ = msg.Nack(false, true) // requeue, smtp errors are usually transient
					continue
				}

				_ = msg.Ack(false)
			}
		}
	}()

	logger.Info("waiting for messages (CTRL+C to quit)")
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	slog.Info("shutting down mail worker")
	cancel()
	wg.Wait()
	slog.Info("mail worker stopped")
}
