package gmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		text        string
		company     string
		wantSubject string
		wantBody    string
	}{
		{
			name:        "leading subject line",
			text:        "Subject: Quick question about Acme\n\nHi Jane,\n\nBody here.",
			company:     "Acme",
			wantSubject: "Quick question about Acme",
			wantBody:    "Hi Jane,\n\nBody here.",
		},
		{
			name:        "case insensitive prefix",
			text:        "SUBJECT: Hello\nBody line.",
			company:     "Acme",
			wantSubject: "Hello",
			wantBody:    "Body line.",
		},
		{
			name:        "no subject line synthesizes from company",
			text:        "Hi Jane,\n\nStraight into the body.",
			company:     "Acme Corp",
			wantSubject: "Partnership Opportunity - Acme Corp",
			wantBody:    "Hi Jane,\n\nStraight into the body.",
		},
		{
			name:        "no subject and no company",
			text:        "Hi there.",
			company:     "",
			wantSubject: "Partnership Opportunity - Your Company",
			wantBody:    "Hi there.",
		},
		{
			name:        "subject past scan window stays in body",
			text:        "a\nb\nc\nd\ne\nf\nSubject: too late\nmore",
			company:     "Acme",
			wantSubject: "Partnership Opportunity - Acme",
			wantBody:    "a\nb\nc\nd\ne\nf\nSubject: too late\nmore",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			subject, body := SplitSubject(tt.text, tt.company)
			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
