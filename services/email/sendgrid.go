package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/pinkconnect/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

const (
	sendAttempts    = 3
	retryBackoff    = 2 * time.Second
	maxRetryBackoff = time.Minute
)

// sendgridService delivers PinkConnect mails through the SendGrid v3 API.
// Each mail is tagged with the app name and its template (confirm_signup, password_reset)
// so deliveries can be told apart in the SendGrid activity feed.
type sendgridService struct {
	key        string
	host       string
	from       *sgmail.Email
	appName    string
	subjPrefix string
	logger     core.Logger

	api   func(rest.Request) (*rest.Response, error) // mockable
	sleep func(time.Duration)                        // mockable
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		host:       host,
		from:       sgmail.NewEmail(from.Name, from.Address),
		appName:    conf.AppName,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		api:        sendgrid.API,
		sleep:      time.Sleep,
	}
}

func (svc *sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("emailsvc: rendering %q: %v", msg.TemplateName, err), err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				svc.send(*msg)
			}
		}()
	}
}

func (svc *sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories(svc.categories(msg)...)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, a := range msg.Attachments {
		m.AddAttachment(&sgmail.Attachment{
			Content:     a.Content.String(),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}
	return m
}

// categories tags msg with the app and, for templated mails, the template name.
func (svc *sendgridService) categories(msg core.EmailMessage) []string {
	cats := []string{svc.appName}
	if msg.TemplateName != "" {
		cats = append(cats, msg.TemplateName)
	}
	return cats
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// send posts msg, retrying throttled (429) and 5xx answers up to sendAttempts times.
// The wait honors the Retry-After header and otherwise doubles from retryBackoff.
func (svc *sendgridService) send(msg core.EmailMessage) {
	body := sgmail.GetRequestBody(svc.prepare(msg))
	wait := retryBackoff

	for attempt := 1; ; attempt++ {
		req := sendgrid.GetRequest(svc.key, endpoint, svc.host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := svc.api(req)
		switch {
		case err != nil:
			svc.logger.Error(fmt.Sprintf("emailsvc: sending %q: %v", msg.TemplateName, err), err)
			return
		case res.StatusCode < http.StatusBadRequest:
			return
		case !retryable(res.StatusCode) || attempt == sendAttempts:
			svc.logger.Error(fmt.Sprintf("emailsvc: sending %q - attempt: %d - status: %d - body: %s", msg.TemplateName, attempt, res.StatusCode, res.Body))
			return
		}

		d := retryAfter(res, wait)
		svc.logger.Warn(fmt.Sprintf("emailsvc: sending %q - status: %d - retrying in %s", msg.TemplateName, res.StatusCode, d))
		svc.sleep(d)
		wait *= 2
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// retryAfter reads the delay SendGrid asks for, in seconds or as an HTTP date, capped at maxRetryBackoff.
func retryAfter(res *rest.Response, fallback time.Duration) time.Duration {
	d := fallback
	if v := http.Header(res.Headers).Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			d = time.Duration(secs) * time.Second
		} else if at, err := http.ParseTime(v); err == nil {
			d = time.Until(at)
		}
	}
	if d < 0 {
		d = 0
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}
