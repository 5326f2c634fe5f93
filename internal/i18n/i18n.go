// Package i18n переводит тексты страницы дашборда. Переводы лежат в YAML и
// встраиваются в бинарник; язык по умолчанию испанский, как у исходного дашборда.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// DefaultLang — язык, на который откатываются отсутствующие переводы.
const DefaultLang = "es"

// Translator переводит сообщения на один выбранный язык.
type Translator struct {
	lang      string
	localizer *i18n.Localizer
}

// New загружает встроенные переводы и создает переводчик для lang.
func New(lang string) (*Translator, error) {
	bundle := i18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", f.Name(), err)
		}
	}

	if lang == "" {
		lang = DefaultLang
	}
	return &Translator{lang: lang, localizer: i18n.NewLocalizer(bundle, lang, DefaultLang)}, nil
}

func (t *Translator) Lang() string {
	return t.lang
}

// T переводит сообщение. data подставляется в шаблон перевода ({{.Name}}).
// Неизвестный ID возвращается как есть.
func (t *Translator) T(messageID string, data ...map[string]any) string {
	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	msg, err := t.localizer.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}

// Month возвращает название месяца на языке переводчика.
func (t *Translator) Month(m time.Month) string {
	return t.T(fmt.Sprintf("month.%d", int(m)))
}
