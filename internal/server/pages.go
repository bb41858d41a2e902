package server

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed static/*.html
var embedded embed.FS

const (
	pageHello    = "hello.html"
	pageNotFound = "404.html"
)

// Pages serves the HTML bodies. Files are read on every request so edits in
// a static directory show up without a restart.
type Pages struct {
	fsys fs.FS
}

// NewPages uses dir when it is set and the embedded pages otherwise.
func NewPages(dir string) (*Pages, error) {
	if dir == "" {
		sub, err := fs.Sub(embedded, "static")
		if err != nil {
			return nil, err
		}
		return &Pages{fsys: sub}, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static dir: %s is not a directory", dir)
	}
	return &Pages{fsys: os.DirFS(dir)}, nil
}

func (p *Pages) Read(name string) ([]byte, error) {
	return fs.ReadFile(p.fsys, name)
}
