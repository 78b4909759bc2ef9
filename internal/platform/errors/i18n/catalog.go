// Package i18n renders placement error codes as localized messages.
package i18n

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/soimap/internal/platform/i18n/catalog"
)

// Namespace is the catalog namespace holding error templates.
const Namespace = "errors"

// Code mirrors errors.Code without importing it.
type Code = string

// message is one template, parsed once when the catalog is built. A template
// that fails to parse keeps its raw text and is returned verbatim.
type message struct {
	raw  string
	tmpl *template.Template
}

// Catalog maps error codes to message templates for one locale.
type Catalog struct {
	locale   string
	messages map[Code]message
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

// GetCatalog returns the catalog for locale, building it on first use.
// Unknown locales resolve to en-US, and codes a locale leaves untranslated
// use the en-US template.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	bundle := i18ncatalog.Default()
	resolved, messages := bundle.NamespaceMessagesWithFallback(requested, Namespace)
	if c, ok := lookupCatalog(resolved); ok {
		return c
	}
	if resolved != i18ncatalog.BaseLocale {
		for code, text := range bundle.NamespaceMessages(i18ncatalog.BaseLocale, Namespace) {
			if _, ok := messages[code]; !ok {
				messages[code] = text
			}
		}
	}
	return storeCatalogIfAbsent(resolved, NewCatalog(resolved, messages))
}

// NewCatalog parses messages into a catalog for locale.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	parsed := make(map[Code]message, len(messages))
	for code, text := range messages {
		m := message{raw: text}
		if tmpl, err := template.New(code).Option("missingkey=zero").Parse(text); err == nil {
			m.tmpl = tmpl
		}
		parsed[code] = m
	}
	return &Catalog{locale: locale, messages: parsed}
}

// RegisterCatalog installs cat for locale, replacing any built catalog.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Codes lists the codes this catalog can render, sorted.
func (c *Catalog) Codes() []Code {
	return slices.Sorted(maps.Keys(c.messages))
}

// Format renders code with metadata such as EntityID, Zone, Row and Col.
// Missing metadata renders empty. An unknown code renders as itself, and a
// broken template renders its raw text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	m, ok := c.messages[code]
	if !ok {
		return code
	}
	if m.tmpl == nil {
		return m.raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := m.tmpl.Execute(&b, metadata); err != nil {
		return m.raw
	}
	return b.String()
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func storeCatalogIfAbsent(locale string, candidate *Catalog) *Catalog {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	if existing, ok := catalogs[locale]; ok {
		return existing
	}
	catalogs[locale] = candidate
	return candidate
}
