package handlers

import (
	"fmt"
	"net/http"
)

// DocsHandler renders the interactive API reference for the OpenAPI spec
// huma publishes. Stoplight Elements comes from its CDN, so no assets are
// bundled into the binary.
type DocsHandler struct {
	title    string
	specPath string
}

// NewDocsHandler creates a docs handler for the spec served at specPath.
func NewDocsHandler(title, specPath string) *DocsHandler {
	return &DocsHandler{title: title, specPath: specPath}
}

// docsPage follows the viewer's color scheme preference.
const docsPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>%s</title>
  <link href="https://unpkg.com/@stoplight/elements@8/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@8/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    html[data-theme="dark"] { color-scheme: dark; }
    html[data-theme="dark"] body { background-color: #16181d; }
    html[data-theme="dark"] .sl-elements {
      --color-canvas-100: #16181d;
      --color-canvas-200: #1c1f26;
      --color-canvas-300: #23262e;
      --color-canvas: #16181d;
      --color-text: #e4e4e7;
      --color-text-heading: #fafafa;
      --color-text-paragraph: #d4d4d8;
      --color-text-secondary: #a1a1aa;
      --color-border: #3f3f46;
    }
    html[data-theme="light"] { color-scheme: light; }
  </style>
  <script>
    const media = window.matchMedia('(prefers-color-scheme: dark)');
    const apply = dark => document.documentElement.setAttribute('data-theme', dark ? 'dark' : 'light');
    apply(media.matches);
    media.addEventListener('change', e => apply(e.matches));
  </script>
</head>
<body style="height: 100vh; margin: 0;">
  <elements-api
    apiDescriptionUrl="%s"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
  />
</body>
</html>`

// ServeHTTP writes the documentation page.
func (h *DocsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, docsPage, h.title, h.specPath)
}
