package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/epeers/nexus/internal/models"
	log "github.com/sirupsen/logrus"
)

const EmailDispatcherName = "email"

// EmailSender sends one pre-rendered HTML email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends email through AWS SES
type SESSender struct {
	client    sesAPI
	fromEmail string
}

// NewSESSender loads the default AWS config for region. fromEmail must be a verified sender.
func NewSESSender(ctx context.Context, region, fromEmail string) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(cfg), fromEmail: fromEmail}, nil
}

func (s *SESSender) SendEmail(ctx context.Context, to, subject, body string) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	if result.MessageId != nil {
		log.Debugf("SES accepted message %s for %s", *result.MessageId, to)
	}
	return nil
}

var tradesEmail = template.Must(template.New("trades").Parse(`<h2>Nexus trades for {{.Code}}</h2>
<p>Run {{.RunID}}</p>
{{if .Trades}}<table>
<tr><th>Ticker</th><th>Side</th><th>Quantity</th><th>Est. price</th></tr>
{{range .Trades}}<tr><td>{{.Ticker}}</td><td>{{.Side}}</td><td>{{.Quantity}}</td><td>{{if .EstimatedPrice}}{{.EstimatedPrice.StringFixed 2}}{{end}}</td></tr>
{{end}}</table>{{else}}<p>No trades were needed.</p>{{end}}
`))

// EmailDispatcher notifies the requested address of the confirmed trades
type EmailDispatcher struct {
	sender EmailSender
}

// NewEmailDispatcher creates a dispatcher; a nil sender reports every request as failed
func NewEmailDispatcher(sender EmailSender) *EmailDispatcher {
	return &EmailDispatcher{sender: sender}
}

func (e *EmailDispatcher) Name() string { return EmailDispatcherName }

func (e *EmailDispatcher) Requested(job models.DispatchJob) bool {
	return job.NotifyEmail != ""
}

func (e *EmailDispatcher) Dispatch(ctx context.Context, job models.DispatchJob) models.DispatchOutcome {
	outcome := models.DispatchOutcome{Dispatcher: e.Name(), Status: models.DispatchStatusError}
	if e.sender == nil {
		outcome.Message = "email is not configured"
		return outcome
	}

	var body bytes.Buffer
	if err := tradesEmail.Execute(&body, job); err != nil {
		outcome.Message = fmt.Sprintf("failed to render email: %v", err)
		return outcome
	}

	subject := fmt.Sprintf("Nexus trades for %s", job.Code)
	if err := e.sender.SendEmail(ctx, job.NotifyEmail, subject, body.String()); err != nil {
		outcome.Message = err.Error()
		return outcome
	}

	outcome.Status = models.DispatchStatusSuccess
	outcome.Submitted = 1
	outcome.Message = fmt.Sprintf("Sent %d trades to %s", len(job.Trades), job.NotifyEmail)
	return outcome
}
