package report

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"stocksync_api/config"
	"stocksync_api/internal/sync"
	"stocksync_api/pkg/logger"
)

// EmailSender is the notification sink for run statistics. It sends one
// mail per run, completion or token-limit-abort flavored, with the
// current day's log files attached.
type EmailSender struct {
	client    *sendgrid.Client
	fromEmail string
	toEmail   string
	logsDir   string
	log       logger.Logger
}

func NewEmailSender(cfg config.EmailConfig, logsDir string, log logger.Logger) *EmailSender {
	return &EmailSender{
		client:    sendgrid.NewSendClient(cfg.ApiKey),
		fromEmail: cfg.FromEmail,
		toEmail:   cfg.ToEmail,
		logsDir:   logsDir,
		log:       log,
	}
}

func completionBody(stats *sync.Stats) string {
	return fmt.Sprintf(`Stock update run completed.

Summary:
- Product codes processed: %d
- Products updated: %d
- Errors: %d
- Warnings: %d
- Started: %s
- Finished: %s (took %s)

Detailed logs are attached.
`,
		stats.CodesProcessed, stats.ProductsUpdated, stats.Errors, stats.Warnings,
		stats.Start.Format("2006-01-02 15:04:05"), stats.End.Format("2006-01-02 15:04:05"),
		stats.Duration.Round(time.Second))
}

func tokenLimitBody(stats *sync.Stats) string {
	return fmt.Sprintf(`Stock update run stopped: authentication token attempt limit exceeded.

Summary before stop:
- Product codes processed: %d
- Products updated: %d
- Errors: %d
- Warnings: %d
- Stopped: %s

Detailed logs are attached.
`,
		stats.CodesProcessed, stats.ProductsUpdated, stats.Errors, stats.Warnings,
		stats.End.Format("2006-01-02 15:04:05"))
}

// SendCompletion reports a finished run, whether or not individual items
// failed.
func (s *EmailSender) SendCompletion(stats *sync.Stats) error {
	return s.send("Stock Update - Completed", completionBody(stats))
}

// SendTokenLimit reports a run aborted by the token attempt ceiling.
func (s *EmailSender) SendTokenLimit(stats *sync.Stats) error {
	return s.send("Stock Update - Stopped (Token Limit Exceeded)", tokenLimitBody(stats))
}

func (s *EmailSender) send(subject, body string) error {
	from := mail.NewEmail("Stock Sync", s.fromEmail)
	to := mail.NewEmail("", s.toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	for _, path := range logger.CurrentDayFiles(s.logsDir) {
		attachment, err := fileAttachment(path)
		if err != nil {
			if s.log != nil {
				s.log.Log("skipping log attachment %s: %v", filepath.Base(path), err)
			}
			continue
		}
		message.AddAttachment(attachment)
	}

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("sending report email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sending report email: status %d: %s", resp.StatusCode, resp.Body)
	}
	if s.log != nil {
		s.log.Log("report email sent (%q)", subject)
	}
	return nil
}

func fileAttachment(path string) (*mail.Attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a := mail.NewAttachment()
	a.SetContent(base64.StdEncoding.EncodeToString(content))
	a.SetType("text/plain")
	a.SetFilename(filepath.Base(path))
	a.SetDisposition("attachment")
	return a, nil
}
