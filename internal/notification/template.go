package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"regexp"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
)

// Kind identifies a transactional email template
type Kind string

const (
	KindWelcome           Kind = "welcome"
	KindPasswordReset     Kind = "password-reset"
	KindEmailVerification Kind = "email-verification"
)

// IsValid reports whether k is a known template
func (k Kind) IsValid() bool {
	_, ok := layouts[k]
	return ok
}

// Params are the template inputs. Welcome uses Name and Role, the others use Token.
type Params struct {
	Name  string      `json:"name,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
	Token string      `json:"token,omitempty"`
}

// Rendered is a ready-to-send email body
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

type layout struct {
	file       string
	subject    string
	title      string
	heading    string
	footerNote string
}

var layouts = map[Kind]layout{
	KindWelcome: {
		file:       "templates/welcome.html",
		subject:    "¡Bienvenido a Tenemos Filo!",
		title:      "¡Bienvenido a Tenemos Filo!",
		heading:    "¡Bienvenido a Tenemos Filo!",
		footerNote: "Si no solicitaste esta cuenta, puedes ignorar este mensaje.",
	},
	KindPasswordReset: {
		file:       "templates/password_reset.html",
		subject:    "Recuperar Contraseña - Tenemos Filo",
		title:      "Recuperar Contraseña - Tenemos Filo",
		heading:    "Recuperar Contraseña",
		footerNote: "Si no solicitaste este cambio, contacta con soporte.",
	},
	KindEmailVerification: {
		file:       "templates/email_verification.html",
		subject:    "Verifica tu Email - Tenemos Filo",
		title:      "Verificar Email - Tenemos Filo",
		heading:    "Verificar tu Email",
		footerNote: "Si no creaste esta cuenta, puedes ignorar este mensaje.",
	},
}

var (
	hostBenefits = []string{
		"Crear experiencias gastronómicas únicas",
		"Gestionar tus eventos y reservas",
		"Conectar con comensales apasionados",
	}
	guestBenefits = []string{
		"Descubrir experiencias gastronómicas únicas",
		"Reservar en eventos exclusivos",
		"Conectar con anfitriones talentosos",
	}
)

//go:embed templates/*.html
var templateFS embed.FS

var tagPattern = regexp.MustCompile(`<[^>]*>`)

type templateData struct {
	Title      string
	Heading    string
	FooterNote string
	AppURL     string
	Name       string
	RoleLabel  string
	Benefits   []string
	Link       string
}

// Renderer renders the email templates against a public app URL
type Renderer struct {
	appURL    string
	templates map[Kind]*template.Template
}

// NewRenderer parses every template once
func NewRenderer(appURL string) (*Renderer, error) {
	if appURL == "" {
		appURL = "https://tenemosfilo.com"
	}

	r := &Renderer{appURL: appURL, templates: make(map[Kind]*template.Template, len(layouts))}
	for kind, l := range layouts {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", l.file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", kind, err)
		}
		r.templates[kind] = tmpl
	}
	return r, nil
}

// Render produces the subject and bodies for kind
func (r *Renderer) Render(kind Kind, params Params) (*Rendered, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	l := layouts[kind]

	data := templateData{
		Title:      l.title,
		Heading:    l.heading,
		FooterNote: l.footerNote,
		AppURL:     r.appURL,
	}
	switch kind {
	case KindWelcome:
		data.Name = params.Name
		data.RoleLabel = params.Role.Label()
		data.Benefits = guestBenefits
		if params.Role == domain.RoleHost {
			data.Benefits = hostBenefits
		}
	case KindPasswordReset:
		data.Link = r.appURL + "/reset-password?token=" + url.QueryEscape(params.Token)
	case KindEmailVerification:
		data.Link = r.appURL + "/verify-email?token=" + url.QueryEscape(params.Token)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("failed to render %s template: %w", kind, err)
	}

	html := buf.String()
	return &Rendered{
		Subject: l.subject,
		HTML:    html,
		Text:    tagPattern.ReplaceAllString(html, ""),
	}, nil
}
