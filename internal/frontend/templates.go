package frontend

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/dgellow/gsession/internal/calendar"
	"github.com/dgellow/gsession/internal/log"
)

//go:embed templates/login.html
var loginPageTemplateHTML string

//go:embed templates/home.html
var homePageTemplateHTML string

var loginPageTemplate = template.Must(template.New("login").Parse(loginPageTemplateHTML))
var homePageTemplate = template.Must(template.New("home").Parse(homePageTemplateHTML))

// LoginPageData is rendered when no usable session exists
type LoginPageData struct {
	CSRFToken string
	Message   string
}

// HomePageData is rendered for a signed-in user
type HomePageData struct {
	GivenName string
	Picture   string
	Events    []calendar.Event
	Error     string
	CSRFToken string
}

// render executes tmpl into a buffer first so a template failure still
// produces a clean 500
func render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.LogError("Failed to render %s page: %v", tmpl.Name(), err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
