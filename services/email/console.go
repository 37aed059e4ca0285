package emailsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

type consoleService struct {
	appName          string
	defaultFromEmail mail.Address
	subjPrefix       string
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.EmailService {
	return &consoleService{
		appName:          conf.AppName,
		defaultFromEmail: defaultFrom(conf),
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(svc.appName); err != nil {
		log.Printf("%+v", errors.Wrap(err, "rendering email"))
		return
	}
	if msg.HasRecipients() && msg.HasContent() {
		svc.send(*msg)
		mu.Lock()
		SentMessages = append(SentMessages, *msg)
		mu.Unlock()
	}
}

func (svc consoleService) send(msg core.EmailMessage) {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", svc.joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", svc.joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", svc.joinAddresses(msg.Bcc))
	}
	_, _ = fmt.Fprint(body, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.TextContent)

	if !svc.disableOutput {
		log.Println(body.String())
	}
}

func (svc consoleService) joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

type consoleServiceMock struct {
	consoleService
}

// NewConsoleServiceMock returns a console service sending synchronously and silently.
func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	return &consoleServiceMock{
		consoleService: consoleService{
			appName:          conf.AppName,
			defaultFromEmail: defaultFrom(conf),
			subjPrefix:       "[" + conf.AppName + "] ",
			disableOutput:    true,
		},
	}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		svc.sendMessage(msg)
	}
}

// ResetSentMessages clears SentMessages, for tests.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	mu.Unlock()
}

// GetSentMessages returns a copy of SentMessages.
func GetSentMessages() []core.EmailMessage {
	mu.Lock()
	defer mu.Unlock()
	return append([]core.EmailMessage(nil), SentMessages...)
}
