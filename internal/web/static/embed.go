// Package static embeds the face registration and face login pages.
package static

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed all:dist
var distFS embed.FS

// Files is the dist directory, rooted so "index.html" is at the top.
var Files = sync.OnceValue(func() fs.FS {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic(err)
	}
	return sub
})

// ETag identifies this build of the pages. Asset names carry no hash, so
// browsers revalidate against it instead of caching forever.
var ETag = sync.OnceValue(func() string {
	h := sha256.New()
	err := fs.WalkDir(Files(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(Files(), p)
		if err != nil {
			return err
		}
		h.Write([]byte(p))
		h.Write(data)
		return nil
	})
	if err != nil {
		panic(err)
	}
	return `"` + hex.EncodeToString(h.Sum(nil)[:8]) + `"`
})

// ReadFile returns the embedded file for a URL path such as /assets/app.js.
func ReadFile(urlPath string) ([]byte, error) {
	return fs.ReadFile(Files(), strings.TrimPrefix(path.Clean("/"+urlPath), "/"))
}
