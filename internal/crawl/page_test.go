package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPage(t *testing.T) {
	html := `<html><head>
		<title>  Acme Store  </title>
		<script src="https://cdn.example.com/jquery-3.4.1.min.js"></script>
		<script>inline() // no src, skipped</script>
		<script src="/static/app.js"></script>
	</head><body></body></html>`

	title, scripts := ExtractPage(html)
	assert.Equal(t, "Acme Store", title)
	assert.Equal(t, []string{"https://cdn.example.com/jquery-3.4.1.min.js", "/static/app.js"}, scripts)
}

func TestExtractPageNoTitle(t *testing.T) {
	title, scripts := ExtractPage("<html><body><p>bare</p></body></html>")
	assert.Empty(t, title)
	assert.Empty(t, scripts)
}

func TestExtractPageNotHTML(t *testing.T) {
	title, scripts := ExtractPage(`{"error": "not found"}`)
	assert.Empty(t, title)
	assert.Empty(t, scripts)
}
