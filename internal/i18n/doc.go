// Package i18n holds the localized message catalogs for status codes,
// error codes, notifications and UI text.
//
// Catalogs are YAML files embedded at build time. A Catalog is constructed
// per locale and passed to the components that render messages:
//
//	cat, err := i18n.New("ja")
//	msg := cat.Status(types.EventRunning)
package i18n
