// Package views holds the HTML and mail templates compiled into the binary.
package views

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var files embed.FS

// FS is rooted at the templates directory.
var FS = func() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}()

// NewEngine returns the fiber view engine for every *.html template.
func NewEngine() *html.Engine {
	engine := html.NewFileSystem(http.FS(FS), ".html")
	engine.AddFunc("join", strings.Join)
	return engine
}
