package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/orbit/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	sendgridAPIFunc = sendgrid.API // mockable
)

type sendgridService struct {
	key        string
	appName    string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := defaultFrom(conf)
	return &sendgridService{
		key:        conf.SendgridAPIKey,
		appName:    conf.AppName,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.sendMessage(msg)
	}
}

func (svc sendgridService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.appName); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
		return
	}
	if msg.HasRecipients() && msg.HasContent() {
		svc.send(*msg)
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc sendgridService) send(msg core.EmailMessage) {
	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgridAPIFunc(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
	}
}

func defaultFrom(conf *core.Config) mail.Address {
	if addr, err := mail.ParseAddress(conf.DefaultFromEmail); err == nil {
		if addr.Name == "" {
			addr.Name = conf.AppName
		}
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.DefaultFromEmail}
}
