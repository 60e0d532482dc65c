// Package assets embeds the default celebrity dataset so the server and CLI
// run without any configured data file.
package assets

import (
	"embed"
	"io"
)

//go:embed celebrities.json
var FS embed.FS

// Celebrities opens the embedded dataset document.
func Celebrities() (io.ReadCloser, error) {
	return FS.Open("celebrities.json")
}
