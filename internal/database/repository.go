package database

import (
	"context"

	"github.com/kozaktomas/faceauth/internal/facematch"
)

// KeyValueStore is durable key-value storage. It plays the role of the
// browser's local storage: the face template and the current user record
// each live under a fixed key.
type KeyValueStore interface {
	// Get returns the value stored under key, or nil if there is none
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// TemplateReader provides read-only access to the registered face template
type TemplateReader interface {
	// Load returns the registered template, or nil if nothing is registered
	Load(ctx context.Context) (*facematch.FaceTemplate, error)
}

// TemplateStore provides read and write access to the registered face template
type TemplateStore interface {
	TemplateReader

	// Save registers descriptor under username, replacing any previous template
	Save(ctx context.Context, username string, descriptor facematch.Descriptor) error
}

// TemplateMirror receives a copy of every saved template. Backends with
// vector support use it to keep a queryable copy next to the key-value entry.
type TemplateMirror interface {
	MirrorTemplate(ctx context.Context, tmpl *facematch.FaceTemplate) error
}
