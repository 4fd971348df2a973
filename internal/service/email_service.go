package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// EmailService sends transactional emails.
type EmailService interface {
	SendWelcome(ctx context.Context, toEmail, displayName, idempotencyKey string) error
}

// NoopEmailService is used when email is disabled.
type NoopEmailService struct{}

func (NoopEmailService) SendWelcome(ctx context.Context, toEmail, displayName, idempotencyKey string) error {
	logger.For("EmailService").Debugw("noop welcome email", "to", toEmail)
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
	log    *zap.SugaredLogger
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
		log:    logger.For("EmailService"),
	}, nil
}

func (s *ResendEmailService) SendWelcome(ctx context.Context, toEmail, displayName, idempotencyKey string) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "there"
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your saved listings are now in your account",
		Text:    fmt.Sprintf("Hi %s, your account is ready. Pins and collections saved before sign-up have been moved to it.", name),
		Html:    fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Pins and collections saved before sign-up have been moved to it.</p>", name),
	}

	options := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		options.IdempotencyKey = key
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			s.log.Infow("Приветственное письмо отправлено", "to", toEmail)
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}
		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			return time.Duration(min(seconds, 30)) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}
	return 0, false
}
