package placeholder

import "strings"

// Recipient carries the personalization fields a template can reference.
// Instances are read-only once handed to the engine; their lifetime is
// bounded to a single compose session.
type Recipient struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company"`
	JobTitle  string `json:"jobTitle,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Bracketed labels substituted for empty fields when the fallback policy is
// enabled. These match what the compose preview shows for an unselected
// recipient.
const (
	LabelFirstName = "[First Name]"
	LabelLastName  = "[Last Name]"
	LabelCompany   = "[Company]"
	LabelJobTitle  = "[Job Title]"
)

// Option configures a single Render call.
type Option func(*renderConfig)

type renderConfig struct {
	bracketed bool
	vars      map[string]string
	wrap      func(string) string
}

// WithBracketedLabels substitutes bracketed field labels instead of empty
// strings for missing recipient values. Call sites must pick one policy and
// keep it; mixing policies across previews of the same content is confusing
// for the operator.
func WithBracketedLabels() Option {
	return func(c *renderConfig) { c.bracketed = true }
}

// WithVars registers caller-defined variables addressed by double-brace
// tokens, e.g. {{promoCode}}. Keys are case-sensitive.
func WithVars(vars map[string]string) Option {
	return func(c *renderConfig) {
		if len(vars) > 0 {
			c.vars = vars
		}
	}
}

// Render substitutes every recognized token in text with the corresponding
// recipient field. Unrecognized tokens pass through untouched, so text
// containing no tokens is returned as-is.
func Render(text string, r Recipient, opts ...Option) string {
	cfg := &renderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return render(text, r, cfg)
}

// RenderHTML is the rich-preview form of Render: substituted values are
// wrapped in <strong> and newlines become <br />. This is presentation only;
// the plain-text contract of Render is unchanged. Recipient values are not
// escaped before embedding.
func RenderHTML(text string, r Recipient, opts ...Option) string {
	cfg := &renderConfig{wrap: func(v string) string {
		return "<strong>" + v + "</strong>"
	}}
	for _, opt := range opts {
		opt(cfg)
	}
	out := render(text, r, cfg)
	return strings.ReplaceAll(out, "\n", "<br />")
}

func render(text string, r Recipient, cfg *renderConfig) string {
	firstName := fieldValue(r.FirstName, LabelFirstName, cfg.bracketed)
	lastName := fieldValue(r.LastName, LabelLastName, cfg.bracketed)
	company := fieldValue(r.Company, LabelCompany, cfg.bracketed)
	jobTitle := fieldValue(r.JobTitle, LabelJobTitle, cfg.bracketed)

	if cfg.wrap != nil {
		firstName = cfg.wrap(firstName)
		lastName = cfg.wrap(lastName)
		company = cfg.wrap(company)
		jobTitle = cfg.wrap(jobTitle)
	}

	// Sequential ReplaceAll matches the original preview logic. The fixed
	// tokens are disjoint, so ordering is irrelevant for well-formed input;
	// a field value containing a token literal is the documented exception.
	out := text
	out = strings.ReplaceAll(out, "{firstName}", firstName)
	out = strings.ReplaceAll(out, "{lastName}", lastName)
	out = strings.ReplaceAll(out, "{company}", company)
	out = strings.ReplaceAll(out, "{companyName}", company)
	out = strings.ReplaceAll(out, "{jobTitle}", jobTitle)
	out = strings.ReplaceAll(out, "{position}", jobTitle)

	for key, val := range cfg.vars {
		if cfg.wrap != nil {
			val = cfg.wrap(val)
		}
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}

	return out
}

func fieldValue(v, label string, bracketed bool) string {
	if v == "" && bracketed {
		return label
	}
	return v
}
