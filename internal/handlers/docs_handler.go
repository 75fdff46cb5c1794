package handlers

import (
	"embed"
	"net/http"
)

//go:embed docs/openapi.yaml
var docsFS embed.FS

// scalarPage renders the Scalar API reference UI against the served spec.
const scalarPage = `<!doctype html>
<html>
<head>
  <title>nmschooldata API Reference</title>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body>
  <script id="api-reference" data-url="/docs/openapi.yaml"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>
`

// DocsHandler handles API documentation endpoints.
type DocsHandler struct{}

// NewDocsHandler creates a new DocsHandler.
func NewDocsHandler() *DocsHandler {
	return &DocsHandler{}
}

// UI serves the API documentation UI.
func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(scalarPage))
}

// OpenAPISpec serves the embedded OpenAPI specification.
func (h *DocsHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	content, err := docsFS.ReadFile("docs/openapi.yaml")
	if err != nil {
		http.Error(w, "OpenAPI specification not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}
