package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/nakamastream/accounts/pkg/logger"
)

// EmailService defines the interface for sending notification emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, resetLink string) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	templates   []resetTemplate
	logger      *slog.Logger
}

type resetTemplate struct {
	subject string
	body    string
}

// NewAWSSESEmailService creates a new AWS SES email service. Templates
// are "subject|body" pairs whose body contains a {link} placeholder;
// one is picked at random per message.
func NewAWSSESEmailService(region, fromAddress string, rawTemplates []string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	templates, err := parseResetTemplates(rawTemplates)
	if err != nil {
		return nil, err
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		templates:   templates,
		logger:      logger,
	}, nil
}

func parseResetTemplates(raw []string) ([]resetTemplate, error) {
	templates := make([]resetTemplate, 0, len(raw))
	for _, entry := range raw {
		subject, body, ok := strings.Cut(entry, "|")
		if !ok || !strings.Contains(body, "{link}") {
			return nil, fmt.Errorf("reset template must be \"subject|body\" with a {link} placeholder: %q", entry)
		}
		templates = append(templates, resetTemplate{subject: subject, body: body})
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("at least one reset email template is required")
	}
	return templates, nil
}

// SendPasswordResetEmail delivers a reset link to the user
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, resetLink string) error {
	tmpl := s.templates[rand.IntN(len(s.templates))]
	textBody := strings.ReplaceAll(tmpl.body, "{link}", resetLink)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(tmpl.subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", *result.MessageId))

	return nil
}
