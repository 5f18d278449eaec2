package prompt

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// requiredPlaceholders must appear in every email template. A template
// missing any of them is rejected at parse time.
var requiredPlaceholders = []string{"{name}", "{role}", "{company}", "{research}"}

// optionalPlaceholders may appear and are substituted when present.
var optionalPlaceholders = []string{
	"{location_context}", "{contact_info}", "{education_section}",
	"{topic}", "{subtopic}", "{additional_info_section}",
}

// Template is a validated email prompt template.
type Template struct {
	text string
}

// Parse validates an email template's placeholder set. It fails fast with a
// ValidationError naming the first missing required placeholder.
func Parse(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &model.ValidationError{Reason: "prompt template is empty"}
	}
	for _, ph := range requiredPlaceholders {
		if !strings.Contains(text, ph) {
			return nil, &model.ValidationError{
				Reason: fmt.Sprintf("prompt template is missing required placeholder %s", ph),
			}
		}
	}
	return &Template{text: text}, nil
}

// MustParse parses a template known to be valid. It panics otherwise and is
// reserved for the built-in default.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render substitutes profile data into the template. Optional fields render
// as contextual fragments when present and empty strings otherwise.
func (t *Template) Render(p model.Profile) string {
	locationContext := ""
	if p.Location != "" {
		locationContext = " in " + p.Location
	}

	var contactParts []string
	if p.Phone != "" {
		contactParts = append(contactParts, p.Phone)
	}
	if p.Email != "" {
		contactParts = append(contactParts, p.Email)
	}
	contactInfo := "Contact information not available"
	if len(contactParts) > 0 {
		contactInfo = strings.Join(contactParts, ", ")
	}

	educationSection := ""
	if p.Education != "" {
		educationSection = "- Education: " + p.Education + "\n"
	}

	additionalSection := ""
	if extra := formatExtraFields(p); len(extra) > 0 {
		additionalSection = "\n- Additional Information:\n  " + strings.Join(extra, "\n  ")
	}

	topic := p.Topic
	if topic == "" {
		topic = "Not specified"
	}
	subtopic := p.Subtopic
	if subtopic == "" {
		subtopic = "Not specified"
	}

	r := strings.NewReplacer(
		"{name}", p.Name,
		"{role}", p.Role,
		"{company}", p.Company,
		"{location_context}", locationContext,
		"{contact_info}", contactInfo,
		"{education_section}", educationSection,
		"{topic}", topic,
		"{subtopic}", subtopic,
		"{research}", p.Research,
		"{additional_info_section}", additionalSection,
	)
	return r.Replace(t.text)
}

// Text returns the raw template text.
func (t *Template) Text() string {
	return t.text
}

// defaultEmailTemplate is the single source of truth for default email
// generation copy.
const defaultEmailTemplate = `You are a top-tier growth representative writing a cold outreach email from a boutique AI consulting firm made up of three top-tier AI engineers. Our mission: bring the same AI power that only big real-estate firms can afford today to mid-sized and smaller developers.

Your goal is to get a meeting with {name} (a {role} at {company}{location_context}). You also know the following about them:
- Contact: {contact_info}
{education_section}- Topic: {topic} / {subtopic}
- Research insights: {research}{additional_info_section}

Make it personal and show that you have done your homework. Be warm and concise, with a touch of humour and persuasion. Do not make any generic statements, such as 'Your role as a {role} at {company} is important to us', or 'I hope this email finds you well'.
Don't be overly salesy or sycophantic. Do not use em-dashes, or '-'.

Some things that we can do is automate some of their repetitive tasks.

<RULE> The body of the email should be no more than 150 words. </RULE>

Lastly, make sure the signature is the following:

Evan Brooks
Sr. Engineer, DevelopIQ
evan@developiq.com
561.789.8905
www.developiq.com
`

// DefaultEmailTemplate returns the built-in email template.
func DefaultEmailTemplate() *Template {
	return MustParse(defaultEmailTemplate)
}
