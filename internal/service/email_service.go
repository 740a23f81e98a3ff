package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the part of the SES client used to send mail
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends Student IDs to grown-ups through Amazon SES. Without a
// sender address it is disabled and every send is a no-op.
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	debug      bool
}

// NewEmailService creates a new email service
func NewEmailService(awsRegion, fromEmail, fromName, appBaseURL string, debug bool) (*EmailService, error) {
	svc := &EmailService{
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: appBaseURL,
		debug:      debug,
	}
	if fromEmail == "" {
		log.Println("Email service disabled: SES_FROM_EMAIL not configured")
		return svc, nil
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	svc.client = sesv2.NewFromConfig(awsCfg)
	svc.enabled = true
	log.Printf("Email service enabled: from=%s, region=%s", fromEmail, awsRegion)
	return svc, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

var studentIDEmailHTML = template.Must(template.New("student_id").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="background: #667eea; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0;">Welcome to Nia! 🌟</h1>
		<p>{{.Name}} just joined Nia, the learning buddy.</p>
		<p>This is their Student ID. They need it to log in next time:</p>
		<p style="font-family: monospace; font-size: 22px; padding: 12px; border: 2px dashed #667eea; text-align: center;">{{.StudentID}}</p>
		<p><a href="{{.URL}}">Open Nia</a></p>
		<p style="font-size: 12px; color: #666;">This is an automated email from Nia. Please do not reply.</p>
	</div>
</body>
</html>
`))

type studentIDEmail struct {
	Name      string
	StudentID string
	URL       string
}

// SendStudentIDEmail sends a new student's ID to the grown-up who registered them
func (s *EmailService) SendStudentIDEmail(ctx context.Context, toEmail, studentName, studentID string) error {
	if !s.enabled {
		if s.debug {
			log.Printf("[DEBUG] Email disabled, not sending Student ID to %s", toEmail)
		}
		return nil
	}

	data := studentIDEmail{Name: studentName, StudentID: studentID, URL: s.appBaseURL}

	var htmlBody bytes.Buffer
	if err := studentIDEmailHTML.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("failed to render email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s just joined Nia, the learning buddy.\n\n", studentName)
	fmt.Fprintf(&text, "This is their Student ID. They need it to log in next time:\n\n    %s\n\n", studentID)
	fmt.Fprintf(&text, "Open Nia: %s\n\n---\nThis is an automated email from Nia. Please do not reply.\n", s.appBaseURL)

	subject := fmt.Sprintf("%s's Student ID for Nia", studentName)
	return s.send(ctx, toEmail, subject, htmlBody.String(), text.String())
}

func (s *EmailService) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	utf8 := func(data string) *types.Content {
		return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{toEmail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8(subject),
				Body:    &types.Body{Html: utf8(htmlBody), Text: utf8(textBody)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	if s.debug {
		log.Printf("[DEBUG] SES message ID: %s", aws.ToString(out.MessageId))
	}
	log.Printf("Email sent: to=%s, subject=%s", toEmail, subject)
	return nil
}
