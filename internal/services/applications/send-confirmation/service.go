// internal/services/applications/send-confirmation/service.go
package sendconfirmation

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

const ServiceName = "send-confirmation"

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Service struct {
	config    *Config
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

// NewService accepts nil clients; the matching channel then reports disabled.
func NewService(config *Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	if config == nil {
		config = LoadConfig()
	}
	return &Service{
		config:    config,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"service": ServiceName}),
	}
}

// Execute sends the applicant an email and, when a phone is known, an SMS.
// Channel failures are reported in Output rather than returned.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.ApplicationID == "" {
		return nil, apperrors.NewInvalidRequestError("applicationId is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	out := &Output{
		NotificationID: uuid.New().String(),
		EmailStatus:    StatusDisabled,
		SMSStatus:      StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if s.config.EmailEnabled && s.sesClient != nil && input.Email != "" {
		out.EmailStatus = StatusSent
		if err := s.sendEmail(ctx, input); err != nil {
			s.logger.Error("confirmation email failed", map[string]interface{}{
				"error":         err,
				"applicationId": input.ApplicationID,
			})
			out.EmailStatus = StatusFailed
		}
	}

	if s.config.SMSEnabled && s.snsClient != nil && input.Phone != "" {
		out.SMSStatus = StatusSent
		if err := s.sendSMS(ctx, input); err != nil {
			s.logger.Error("confirmation SMS failed", map[string]interface{}{
				"error":         err,
				"applicationId": input.ApplicationID,
			})
			out.SMSStatus = StatusFailed
		}
	}

	s.logger.Info("confirmation processed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"email":         out.EmailStatus,
		"sms":           out.SMSStatus,
	})
	return out, nil
}

func (s *Service) sendEmail(ctx context.Context, input *Input) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.config.FromEmail),
		Destination: &types.Destination{ToAddresses: []string{input.Email}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(s.config.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(emailBody(input)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return apperrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (s *Service) sendSMS(ctx context.Context, input *Input) error {
	params := &sns.PublishInput{
		PhoneNumber: aws.String(input.Phone),
		Message:     aws.String(smsBody(input)),
	}
	if s.config.SMSSenderID != "" {
		params.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(s.config.SMSSenderID)},
			"AWS.SNS.SMS.SMSType":  {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		}
	}
	if _, err := s.snsClient.Publish(ctx, params); err != nil {
		return apperrors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}

func programName(input *Input) string {
	if input.ProgramTitle != "" {
		return input.ProgramTitle
	}
	return input.ProgramID
}

func emailBody(input *Input) string {
	var b strings.Builder
	name := input.FirstName
	if name == "" {
		name = "Applicant"
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "We have received your application for %s.\n", programName(input))
	fmt.Fprintf(&b, "Your application reference is %s.\n\n", input.ApplicationID)
	b.WriteString("Our admissions team will review it and contact you about next steps.\n")
	return b.String()
}

func smsBody(input *Input) string {
	return fmt.Sprintf("Application received for %s. Ref: %s", programName(input), input.ApplicationID)
}
