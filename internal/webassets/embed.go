package webassets

import (
	"embed"
	"fmt"
	"io/fs"
)

// templates/ must exist and have at least one file to satisfy go:embed
//
//go:embed templates
var embedded embed.FS

// TemplateFS returns the embedded template tree rooted at templates/.
func TemplateFS() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(fmt.Errorf("webassets: templates subfs: %w", err))
	}
	return sub
}
