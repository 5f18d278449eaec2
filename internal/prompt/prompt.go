// Package prompt renders the research and email prompts from profile data.
// Email prompts go through a Template with a fixed placeholder set that is
// validated at configuration time, before any dispatch.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// coreFields are handled explicitly by the templates; anything else on the
// profile is passthrough and rendered into the additional-info section.
var coreFields = map[string]struct{}{
	"name": {}, "company": {}, "role": {}, "location": {}, "phone": {},
	"email": {}, "education": {}, "topic": {}, "subtopic": {},
	"research": {}, "draft": {},
}

// formatExtraFields renders passthrough columns as bullet lines, skipping
// empties and core fields.
func formatExtraFields(p model.Profile) []string {
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		v := strings.TrimSpace(p.Extra[k])
		if v == "" {
			continue
		}
		if _, core := coreFields[strings.ToLower(k)]; core {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", titleCase(strings.ReplaceAll(k, "_", " ")), v))
	}
	return lines
}

// titleCase capitalizes the first letter of each space-separated word.
// Column names are plain ASCII.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Research returns the research prompt for a profile: an individual analysis,
// a company analysis, regional context, and connection points.
func Research(p model.Profile) string {
	var b strings.Builder

	locationContext := ""
	if p.Location != "" {
		locationContext = " in " + p.Location
	}

	fmt.Fprintf(&b, "Comprehensive professional research report on %s and %s.\n", p.Name, p.Company)

	if extra := formatExtraFields(p); len(extra) > 0 {
		b.WriteString("\nADDITIONAL PROFILE INFORMATION:\n")
		b.WriteString(strings.Join(extra, "\n"))
		b.WriteString("\n\nPlease incorporate this additional information into your research where relevant.\n")
	}

	fmt.Fprintf(&b, `
PART 1: INDIVIDUAL ANALYSIS

Provide detailed information about %s who works as %s at %s%s:

1. Professional Background: current responsibilities, career trajectory,
   years of experience, key achievements, areas of expertise.
2. Educational Background: degrees, certifications, specialized training.
3. Industry Presence: speaking engagements, publications, association
   memberships, LinkedIn profile details and activity.
4. Professional Pain Points: common challenges for %s positions,
   industry-specific issues, regulatory or compliance concerns.

PART 2: COMPANY ANALYSIS

Comprehensive information about %s%s:

1. Company Overview: industry classification, size, history, market
   positioning and key competitors, parent company or subsidiaries.
2. Recent Developments: news and press releases from the last 1-2 years,
   product launches, mergers and partnerships, leadership changes,
   financial performance indicators if public.
3. Corporate Technology Stack: known systems and platforms, recent
   technology investments, potential gaps or upgrade needs.
4. Business Challenges: market pressures, competitive threats, regulatory
   changes, growth opportunities.
5. Company Culture: mission and values, CSR initiatives, work environment
   and company reviews.

PART 3: REGIONAL CONTEXT

Information about the business environment%s: major industry trends, local
economic conditions, regional competitors or partners, location-specific
challenges and regulatory environment.

PART 4: CONNECTION POINTS

1. Potential Needs: based on role, company, and industry, what services or
   products might be most valuable; specific pain points our solution could
   address.
2. Conversation Starters: recent company news that could be referenced,
   relevant industry trends, common connections or networking opportunities.

Provide factual, well-researched information only. Clearly distinguish
between verified facts and potential inferences. Include sources where
available.
`, p.Name, p.Role, p.Company, locationContext, p.Role, p.Company, locationContext, locationContext)

	return b.String()
}

// ResearchSystem is the system prompt for research calls.
const ResearchSystem = "You are a helpful research assistant."

// EmailSystem is the system prompt for email generation calls.
const EmailSystem = "You draft personalized outreach emails."
