package email

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/gomail.v2"
)

// Service sends outbound mail. All reminder mail goes through SendCustom.
type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Config is read from SMTP_* environment variables.
type Config struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"alerts@cropcare.local"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("smtp", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load SMTP config: %w", err)
	}
	return &cfg, nil
}

type service struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg *Config) Service {
	return &service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *service) SendCustom(ctx context.Context, to string, subject string, content string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
