package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/facematch"
	log "github.com/sirupsen/logrus"
)

// ErrMissingRegistrationInput is returned when a template is saved without a
// username or without a captured descriptor. The username is checked after
// facematch.NormalizeUsername, so a name of only whitespace or control
// characters counts as missing, and the stored label is the normalized form.
var ErrMissingRegistrationInput = errors.New("no face detected or username provided for registration")

// KVTemplateStore keeps the single face template as JSON in a KeyValueStore.
type KVTemplateStore struct {
	kv     KeyValueStore
	mirror TemplateMirror
}

// NewKVTemplateStore creates a template store on top of kv.
func NewKVTemplateStore(kv KeyValueStore) *KVTemplateStore {
	return &KVTemplateStore{kv: kv}
}

// WithMirror sets a mirror that receives every saved template.
func (s *KVTemplateStore) WithMirror(m TemplateMirror) *KVTemplateStore {
	s.mirror = m
	return s
}

// Save writes {label: username, descriptors: [descriptor]} as the sole
// template. Nothing is written when either input is missing.
func (s *KVTemplateStore) Save(ctx context.Context, username string, descriptor facematch.Descriptor) error {
	label := facematch.NormalizeUsername(username)
	if label == "" || len(descriptor) == 0 {
		return ErrMissingRegistrationInput
	}

	tmpl := &facematch.FaceTemplate{
		Label:       label,
		Descriptors: []facematch.Descriptor{descriptor},
	}
	data, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}

	if err := s.kv.Set(ctx, constants.TemplateKey, data); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	// The key-value entry is authoritative; a stale mirror only affects diagnostics.
	if s.mirror != nil {
		if err := s.mirror.MirrorTemplate(ctx, tmpl); err != nil {
			log.WithError(err).Warn("Failed to mirror face template")
		}
	}
	return nil
}

// Load reads the template, returning nil when nothing is registered.
func (s *KVTemplateStore) Load(ctx context.Context) (*facematch.FaceTemplate, error) {
	data, err := s.kv.Get(ctx, constants.TemplateKey)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var tmpl facematch.FaceTemplate
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &tmpl, nil
}
