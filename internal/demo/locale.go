package demo

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

// Lang is a kiosk display language.
type Lang string

const (
	LangEnglish Lang = "en"
	LangNepali  Lang = "np"
)

//go:embed locales.yaml
var localesYAML []byte

var catalog = mustCatalog(localesYAML)

func mustCatalog(raw []byte) map[Lang]map[string]string {
	var c map[Lang]map[string]string
	if err := yaml.Unmarshal(raw, &c); err != nil {
		panic("demo: bad locales.yaml: " + err.Error())
	}
	return c
}

// T returns the label for key, falling back to English and then to the key.
func T(lang Lang, key string) string {
	if s, ok := catalog[lang][key]; ok {
		return s
	}
	if s, ok := catalog[LangEnglish][key]; ok {
		return s
	}
	return key
}

// Toggle switches between English and Nepali.
func (l Lang) Toggle() Lang {
	if l == LangNepali {
		return LangEnglish
	}
	return LangNepali
}
