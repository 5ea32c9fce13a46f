// Package web embeds the single page front end.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html static
var files embed.FS

func Index() ([]byte, error) {
	return files.ReadFile("index.html")
}

// Static is the static/ tree rooted at its own directory.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
