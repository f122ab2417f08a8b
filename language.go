package main

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Language holds the UI strings WhatsApp Web renders in the user's locale.
// Weekday keys are upper case, the way date dividers display them.
type Language struct {
	Name      string
	Days      map[string]time.Weekday
	Today     string
	Yesterday string
	OpenImage string
}

var languages = map[string]Language{
	"italian": {
		Name: "italian",
		Days: map[string]time.Weekday{
			"DOMENICA": time.Sunday, "LUNEDÌ": time.Monday, "MARTEDÌ": time.Tuesday,
			"MERCOLEDÌ": time.Wednesday, "GIOVEDÌ": time.Thursday, "VENERDÌ": time.Friday,
			"SABATO": time.Saturday,
		},
		Today:     "OGGI",
		Yesterday: "IERI",
		OpenImage: "Apri immagine",
	},
	"spanish": {
		Name: "spanish",
		Days: map[string]time.Weekday{
			"DOMINGO": time.Sunday, "LUNES": time.Monday, "MARTES": time.Tuesday,
			"MIÉRCOLES": time.Wednesday, "JUEVES": time.Thursday, "VIERNES": time.Friday,
			"SÁBADO": time.Saturday,
		},
		Today:     "HOY",
		Yesterday: "AYER",
		OpenImage: "Abrir imagen",
	},
	"english": {
		Name: "english",
		Days: map[string]time.Weekday{
			"SUNDAY": time.Sunday, "MONDAY": time.Monday, "TUESDAY": time.Tuesday,
			"WEDNESDAY": time.Wednesday, "THURSDAY": time.Thursday, "FRIDAY": time.Friday,
			"SATURDAY": time.Saturday,
		},
		Today:     "TODAY",
		Yesterday: "YESTERDAY",
		OpenImage: "Open image",
	},
}

// LookupLanguage returns the built-in language table registered under name.
func LookupLanguage(name string) (Language, error) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		known := make([]string, 0, len(languages))
		for k := range languages {
			known = append(known, k)
		}
		sort.Strings(known)
		return Language{}, fmt.Errorf("unsupported language %q (known: %s)", name, strings.Join(known, ", "))
	}
	return lang, nil
}

// Weekday resolves a divider label such as "LUNEDÌ".
func (l Language) Weekday(label string) (time.Weekday, bool) {
	d, ok := l.Days[strings.ToUpper(strings.TrimSpace(label))]
	return d, ok
}
