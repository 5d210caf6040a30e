// Package web holds the page templates, browser assets and the placeholder resume
// compiled into the server binary.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static resume.pdf
var files embed.FS

// Templates returns the html/template sources.
func Templates() fs.FS {
	sub, err := fs.Sub(files, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Static returns the JS/CSS assets served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Resume returns the bundled placeholder resume.
func Resume() []byte {
	data, err := files.ReadFile("resume.pdf")
	if err != nil {
		panic(err)
	}
	return data
}
