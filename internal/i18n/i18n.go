// Package i18n provides the user-visible texts of the face workflows.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Message IDs.
const (
	LoginSuccessful          = "LoginSuccessful"
	FaceNotRecognized        = "FaceNotRecognized"
	DescriptorLengthMismatch = "DescriptorLengthMismatch"
	NoTemplateRegistered     = "NoTemplateRegistered"
	NoFaceDetected           = "NoFaceDetected"
	RegistrationSuccessful   = "RegistrationSuccessful"
	MissingRegistrationInput = "MissingRegistrationInput"
	ModelsNotReady           = "ModelsNotReady"
	ModelsLoadFailed         = "ModelsLoadFailed"
	CameraInactive           = "CameraInactive"
	ActionNotAllowed         = "ActionNotAllowed"
	DetectionError           = "DetectionError"
	StorageError             = "StorageError"
)

// Translator resolves message IDs for a language.
type Translator struct {
	bundle      *i18n.Bundle
	defaultLang string
}

// New loads the embedded locales. defaultLang is the fallback for requests
// without a usable Accept-Language; a language without a locale file falls
// back to English so users never see bare message IDs.
func New(defaultLang string) (*Translator, error) {
	if defaultLang == "" {
		defaultLang = "en"
	}
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.Glob(localesFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("listing locales: %w", err)
	}
	for _, file := range files {
		if _, err := bundle.LoadMessageFileFS(localesFS, file); err != nil {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}

	available := bundle.LanguageTags()
	_, idx, confidence := language.NewMatcher(available).Match(tag)
	if confidence == language.No {
		log.WithField("language", defaultLang).Warn("No translations for language, using English")
		return &Translator{bundle: bundle, defaultLang: language.English.String()}, nil
	}
	return &Translator{bundle: bundle, defaultLang: available[idx].String()}, nil
}

// MustNew is like New but panics on error. The locales are embedded, so an
// error here is a build defect.
func MustNew(defaultLang string) *Translator {
	t, err := New(defaultLang)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultLanguage returns the fallback language tag.
func (t *Translator) DefaultLanguage() string {
	return t.defaultLang
}

// Languages returns the available language tags.
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	langs := make([]string, 0, len(tags))
	for _, tag := range tags {
		langs = append(langs, tag.String())
	}
	sort.Strings(langs)
	return langs
}

// Localize returns the text of messageID. langs may be language tags or an
// Accept-Language header value; unknown languages fall back to the default.
// An unknown message ID is returned unchanged.
func (t *Translator) Localize(messageID string, langs ...string) string {
	localizer := i18n.NewLocalizer(t.bundle, append(langs, t.defaultLang)...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		log.WithError(err).WithField("message_id", messageID).Debug("Missing translation")
		return messageID
	}
	return msg
}
