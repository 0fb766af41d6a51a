// Package translate localizes the user visible strings of the VM.
package translate

import (
	"log"
	"sync"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FALLBACK_LOCALE is used when the host reports no locale.
const FALLBACK_LOCALE = "en-US"

var (
	printer     *message.Printer
	printerOnce sync.Once
)

// Printer returns the message printer for the host locale.
func Printer() *message.Printer {
	printerOnce.Do(func() {
		locales, err := locale.GetLocales()
		if err != nil {
			log.Printf("y86: locale: %v", err)
		}

		if len(locales) == 0 {
			locales = []string{FALLBACK_LOCALE}
		}

		tag := message.MatchLanguage(locales...)
		if tag == language.Und {
			tag = language.MustParse(FALLBACK_LOCALE)
		}
		printer = message.NewPrinter(tag)
	})

	return printer
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	return Printer().Sprintf(key, args...)
}
