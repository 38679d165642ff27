package classifier

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPromptTemplate embeds four few-shot examples, two negative and two positive.
const DefaultPromptTemplate = `Your task is to determine whether a given video title and description indicate content ` +
	`that requires a wiki article. A wiki article should be created if the content covers a ` +
	`specific event, policy, invention, or newsworthy subject that provides value in documentation ` +
	`and wider dissemination. Examples of when to answer 'yes' or 'no' are provided below.

Examples:
1. 'Cat video' -> No
2. 'Random rant' -> No
3. 'Discussion of specific politician screwing right to repair bill after receiving $3300 from AT&T lobbyist' -> Yes
4. 'Ford filing patent on how to use in-car spyware to advertise to passengers during drive' -> Yes

Now, analyze the following information:

Video Title: {{.Title}}
Description: {{.Description}}

Does this content require a wiki article? Please answer only with 'yes' or 'no'.`

// PromptData is what a prompt template sees.
type PromptData struct {
	Title       string
	Description string
}

// Prompt renders the classification prompt for one video.
type Prompt struct {
	tmpl      *template.Template
	stripHTML bool
}

// NewPrompt parses a template; an empty string selects DefaultPromptTemplate.
func NewPrompt(text string, stripHTML bool) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl, stripHTML: stripHTML}, nil
}

// Render fills in title and description verbatim, or as plain text when stripHTML is set.
func (p *Prompt) Render(title, description string) (string, error) {
	if p.stripHTML {
		description = PlainText(description)
	}

	var b strings.Builder
	if err := p.tmpl.Execute(&b, PromptData{Title: title, Description: description}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// PlainText drops markup from scraped descriptions. Text without tags or entities is returned as-is.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}
