package locales

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed *.json
var localeFS embed.FS

var (
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
)

// Init initializes the i18n bundle by loading the embedded language files and setting the default language.
func Init(defaultLangCode string) error {
	var err error
	defaultLanguage, err = language.Parse(defaultLangCode)
	if err != nil {
		log.Printf("WARN: Failed to parse default language code '%s': %v. Falling back to English.", defaultLangCode, err)
		defaultLanguage = language.English
	}

	bundle = i18n.NewBundle(defaultLanguage)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := localeFS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("failed to read embedded locales: %w", err)
	}

	loadedFiles := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, file.Name()); err != nil {
			log.Printf("WARN: Failed to load message file '%s': %v", file.Name(), err)
			continue
		}
		loadedFiles++
	}
	if loadedFiles == 0 {
		return fmt.Errorf("no message files loaded from locales")
	}
	return nil
}

// GetDefaultLanguageTag returns the configured default language tag.
func GetDefaultLanguageTag() language.Tag {
	if bundle == nil {
		log.Panicln("Attempted to get default language tag before i18n bundle initialization.")
	}
	return defaultLanguage
}

// NewLocalizer creates a localizer for the given language preferences.
func NewLocalizer(langPrefs ...string) *i18n.Localizer {
	if bundle == nil {
		log.Panicln("Attempted to create localizer before i18n bundle initialization.")
	}
	return i18n.NewLocalizer(bundle, langPrefs...)
}

// GetMessage retrieves and formats a message by its ID using the provided localizer.
// It falls back to English, then to the message ID itself.
func GetMessage(localizer *i18n.Localizer, msgID string, templateData map[string]interface{}) string {
	config := &i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: templateData,
	}

	localizedMsg, err := localizer.Localize(config)
	if err == nil {
		return localizedMsg
	}
	log.Printf("ERROR: Failed to localize message ID '%s': %v. Falling back to English.", msgID, err)

	englishLocalizer := i18n.NewLocalizer(bundle, language.English.String())
	if fallbackMsg, fallbackErr := englishLocalizer.Localize(config); fallbackErr == nil {
		return fallbackMsg
	}
	return msgID
}

// Printer writes localized status lines for one language.
type Printer struct {
	localizer *i18n.Localizer
}

// NewPrinter returns a Printer for the default language.
func NewPrinter() *Printer {
	return &Printer{localizer: NewLocalizer(GetDefaultLanguageTag().String())}
}

// Sprint renders msgID with data.
func (p *Printer) Sprint(msgID string, data map[string]interface{}) string {
	return GetMessage(p.localizer, msgID, data)
}

// Println logs the rendered status line.
func (p *Printer) Println(msgID string, data map[string]interface{}) {
	log.Println(p.Sprint(msgID, data))
}
