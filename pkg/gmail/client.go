// Package gmail creates draft messages from completed email drafts.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Client creates Gmail drafts.
type Client interface {
	CreateDraft(ctx context.Context, p model.Profile, emailText, subjectPrefix string) (string, error)
}

type apiClient struct {
	svc *gmailapi.Service
}

// NewClient creates a Gmail client. Credentials come from the given file, or
// Application Default Credentials when path is empty.
func NewClient(ctx context.Context, credentialsPath string) (Client, error) {
	opts := []option.ClientOption{option.WithScopes(gmailapi.GmailModifyScope)}
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}
	return &apiClient{svc: svc}, nil
}

// CreateDraft builds an RFC 2822 message from the generated email text and
// saves it as a draft. A leading "Subject:" line in the text becomes the
// subject; otherwise one is synthesized from the company name. Returns the
// draft ID.
func (c *apiClient) CreateDraft(ctx context.Context, p model.Profile, emailText, subjectPrefix string) (string, error) {
	subject, body := SplitSubject(emailText, p.Company)
	if subjectPrefix != "" {
		subject = subjectPrefix + subject
	}

	var msg strings.Builder
	if p.Email != "" && strings.Contains(p.Email, "@") {
		fmt.Fprintf(&msg, "To: %s\r\n", p.Email)
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	draft, err := c.svc.Users.Drafts.Create("me", &gmailapi.Draft{
		Message: &gmailapi.Message{
			Raw: base64.URLEncoding.EncodeToString([]byte(msg.String())),
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", classify(eris.Wrap(err, "gmail: create draft"), err)
	}
	return draft.Id, nil
}

// SplitSubject extracts a leading "Subject:" line from generated email text.
// When absent, the full text is the body and a subject is synthesized.
func SplitSubject(emailText, company string) (subject, body string) {
	lines := strings.Split(strings.TrimSpace(emailText), "\n")

	// Only scan the first few lines; anything later is body copy.
	for i, line := range lines {
		if i >= 5 {
			break
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "subject:") {
			subject = strings.TrimSpace(strings.TrimSpace(line)[len("subject:"):])
			body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return subject, body
		}
	}

	if company == "" {
		company = "Your Company"
	}
	return "Partnership Opportunity - " + company, strings.TrimSpace(emailText)
}

// classify maps googleapi errors onto the transient/permanent taxonomy.
func classify(wrapped, original error) error {
	var apiErr *googleapi.Error
	if errors.As(original, &apiErr) {
		return resilience.ClassifyHTTPStatus(wrapped, apiErr.Code)
	}
	return wrapped
}
