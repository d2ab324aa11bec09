package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// The UI loads the JSON rendition so browsers without a YAML parser plugin work too.
const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>body { margin: 0; }</style>
</head>
<body>
    <div id="docs"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "{{.SpecURL}}",
            dom_id: "#docs",
            layout: "BaseLayout",
            deepLinking: true,
            docExpansion: "none",
            tryItOutEnabled: true,
            displayRequestDuration: true,
            defaultModelsExpandDepth: 0
        });
    </script>
</body>
</html>`

// SwaggerHandler serves the API reference UI and the OpenAPI document
type SwaggerHandler struct {
	title    string
	yamlDoc  []byte
	jsonDoc  []byte
	jsonErr  error
	uiSource *template.Template
}

// NewSwaggerHandler creates a new Swagger handler. The YAML document is
// converted to JSON once, up front. An empty title falls back to info.title.
func NewSwaggerHandler(title string, doc []byte) *SwaggerHandler {
	h := &SwaggerHandler{
		title:    title,
		yamlDoc:  doc,
		uiSource: template.Must(template.New("docs").Parse(swaggerUITemplate)),
	}
	h.jsonDoc, h.jsonErr = yamlToJSON(doc)
	if h.title == "" {
		h.title = documentTitle(doc)
	}
	return h
}

// RegisterRoutes registers Swagger routes
func (h *SwaggerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/docs", h.UI())
	r.Get("/docs/", http.RedirectHandler("/docs", http.StatusMovedPermanently).ServeHTTP)
	r.Get("/docs/openapi.yaml", h.Spec())
	r.Get("/docs/openapi.json", h.SpecJSON())
}

// UI serves the Swagger UI page
func (h *SwaggerHandler) UI() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct{ Title, SpecURL string }{h.title, "/docs/openapi.json"}
		if err := h.uiSource.Execute(w, data); err != nil {
			http.Error(w, "failed to render docs page", http.StatusInternalServerError)
		}
	}
}

// Spec serves the OpenAPI document as written
func (h *SwaggerHandler) Spec() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(h.yamlDoc)
	}
}

// SpecJSON serves the OpenAPI document converted to JSON
func (h *SwaggerHandler) SpecJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.jsonErr != nil {
			http.Error(w, h.jsonErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(h.jsonDoc)
	}
}

// yamlToJSON requires string mapping keys, so response codes must be quoted in the YAML
func yamlToJSON(doc []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("parsing openapi yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding openapi json: %w", err)
	}
	return out, nil
}

func documentTitle(doc []byte) string {
	var head struct {
		Info struct {
			Title string `yaml:"title"`
		} `yaml:"info"`
	}
	if yaml.Unmarshal(doc, &head) != nil || head.Info.Title == "" {
		return "API Documentation"
	}
	return head.Info.Title
}
