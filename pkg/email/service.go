// Package email sends transactional mail through SendGrid, falling back to
// console logging when no API key is configured.
package email

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service handles email sending.
type Service struct {
	fromEmail   string
	fromName    string
	sendGridKey string
	useSendGrid bool

	// retry knobs for SendWithRetry, overridable in tests
	maxAttempts int
	retryDelay  time.Duration
}

// NewService creates a new email service. With an API key emails go through
// SendGrid; without one they are logged to console (development mode).
func NewService(fromEmail, fromName, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
	}
}

// SendEmail sends a single email with custom subject and bodies.
func (s *Service) SendEmail(toEmail, toName, subject, htmlBody, plainTextBody string) error {
	if s.useSendGrid {
		return s.sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody, s.fromName)
	}
	return s.logEmailToConsole(toEmail, toName, subject)
}

// SendWithRetry sends with bounded retries and backoff. It reports whether
// the send ultimately succeeded; callers treat a false return as a warning,
// not a failure.
func (s *Service) SendWithRetry(toEmail, subject, body, fromName string) bool {
	if fromName == "" {
		fromName = s.fromName
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var err error
		if s.useSendGrid {
			err = s.sendViaSendGrid(toEmail, "", subject, body, body, fromName)
		} else {
			err = s.logEmailToConsole(toEmail, "", subject)
		}
		if err == nil {
			return true
		}

		log.Printf("⚠️  Email send attempt %d/%d to %s failed: %v", attempt, s.maxAttempts, toEmail, err)
		if attempt < s.maxAttempts {
			time.Sleep(s.retryDelay * time.Duration(attempt))
		}
	}
	return false
}

// sendViaSendGrid sends email using the SendGrid API.
func (s *Service) sendViaSendGrid(toEmail, toName, subject, htmlBody, plainTextBody, fromName string) error {
	from := mail.NewEmail(fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)

	message := mail.NewSingleEmail(from, subject, to, plainTextBody, htmlBody)

	client := sendgrid.NewSendClient(s.sendGridKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	log.Printf("✅ Email sent to %s (SendGrid status: %d)", toEmail, response.StatusCode)
	return nil
}

// logEmailToConsole logs email details to console (development mode).
func (s *Service) logEmailToConsole(toEmail, toName, subject string) error {
	log.Printf("📧 [EMAIL] %s", subject)
	log.Printf("   To: %s <%s>", toName, toEmail)
	log.Printf("   From: %s <%s>", s.fromName, s.fromEmail)
	log.Printf("   ⚠️  Email NOT sent (development mode)")
	return nil
}

// RenderTemplate substitutes the purchase placeholders into a stored template
// subject or body.
func RenderTemplate(tpl, buyerName, appName string, amount float64) string {
	r := strings.NewReplacer(
		"{buyer_name}", buyerName,
		"{app_name}", appName,
		"{amount}", fmt.Sprintf("%.2f", amount),
	)
	return r.Replace(tpl)
}
