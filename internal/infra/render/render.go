// Package render turns a curated newsletter into HTML and plain-text email
// bodies. Templates are embedded so the binary stays self-contained.
package render

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"digestly/internal/domain/entity"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateData is the root context passed to both templates.
type templateData struct {
	Newsletter  *entity.CuratedNewsletter
	Profile     *entity.UserProfile
	Date        string
	ReadingTime int
}

// Renderer renders curated newsletters into deliverable email content.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates. It fails only on a build
// misconfiguration, so callers treat an error here as fatal.
func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.New("newsletter.html.tmpl").
		Funcs(htmltemplate.FuncMap{"domain": hostOf}).
		ParseFS(templateFS, "templates/newsletter.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}

	text, err := texttemplate.New("newsletter.txt.tmpl").
		ParseFS(templateFS, "templates/newsletter.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}

	return &Renderer{html: html, text: text}, nil
}

// Render produces the email for one recipient. The generation ID travels in
// a header so interaction tracking can attribute engagement to the run.
func (r *Renderer) Render(newsletter *entity.CuratedNewsletter, profile *entity.UserProfile, generationID string) (*entity.EmailContent, error) {
	data := templateData{
		Newsletter:  newsletter,
		Profile:     profile,
		Date:        time.Now().UTC().Format("Monday, January 2, 2006"),
		ReadingTime: newsletter.EstimatedReadingTime(),
	}

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	var textBuf bytes.Buffer
	if err := r.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}

	return &entity.EmailContent{
		Subject:  newsletter.SubjectLine,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
		Headers: map[string]string{
			"X-Generation-ID": generationID,
		},
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Fallback satisfies the delivery stage's renderer interface.
func (r *Renderer) Fallback(profile *entity.UserProfile, generationID string) *entity.EmailContent {
	return FallbackEmail(profile, generationID)
}

// FallbackEmail builds a minimal plain email used when newsletter rendering
// itself failed. It never returns an error.
func FallbackEmail(profile *entity.UserProfile, generationID string) *entity.EmailContent {
	name := profile.Name
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nWe hit a snag putting together today's personalized newsletter. "+
			"Your next edition will arrive as scheduled.\n\nThe Digestly Team\n",
		name)

	return &entity.EmailContent{
		Subject:  "Your newsletter will be back soon",
		HTMLBody: "<p>" + htmltemplate.HTMLEscapeString(body) + "</p>",
		TextBody: body,
		Headers: map[string]string{
			"X-Generation-ID": generationID,
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func hostOf(rawURL string) string {
	// Cheap host extraction for display; full parsing is overkill here.
	s := rawURL
	for _, prefix := range []string{"https://", "http://"} {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			s = s[len(prefix):]
			break
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i]
		}
	}
	return s
}
