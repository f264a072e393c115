package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

func TestLocalizer_Language(t *testing.T) {
	l := NewLocalizer()

	assert.Equal(t, language.German, l.Language("de-DE,de;q=0.9,en;q=0.5"))
	assert.Equal(t, language.Polish, l.Language("pl"))
	assert.Equal(t, language.English, l.Language("fr-FR"))
	assert.Equal(t, language.English, l.Language(""))
	assert.Equal(t, language.English, l.Language("!!!"))
}

func TestLocalizer_Message(t *testing.T) {
	l := NewLocalizer()

	tests := []struct {
		lang string
		res  *service.Result
		want string
	}{
		{"en", &service.Result{Reason: scancode.OK, Kind: service.KindUnit}, "Unit accepted"},
		{"de", &service.Result{Reason: scancode.OK, Kind: service.KindUnit}, "Teil angenommen"},
		{"en", &service.Result{Reason: scancode.OK, Kind: service.KindContainer, Promoted: 40}, "Box closed, 40 units moved to pallet"},
		{"pl", &service.Result{Reason: scancode.OK, Kind: service.KindPallet, Promoted: 800}, "Paleta zamknięta, 800 szt. w magazynie"},
		{"en", &service.Result{Reason: scancode.OK, Kind: service.KindContainer}, "Nothing to close"},
		{"en", &service.Result{Reason: scancode.OK, Kind: service.KindUnit, Reworked: 1}, "1 units sent to rework"},
		{"en", &service.Result{Reason: scancode.Exists}, "Already scanned"},
		{"de", &service.Result{Reason: scancode.StaleDate}, "Produktionsdatum außerhalb des Zeitfensters"},
		{"en", &service.Result{Reason: scancode.InvalidRequest, Field: "operator"}, "Missing or invalid field: operator"},
		{"fr", &service.Result{Reason: scancode.Internal}, "Unexpected error, contact IT"},
	}

	for _, tt := range tests {
		t.Run(tt.lang+"/"+string(tt.res.Reason), func(t *testing.T) {
			assert.Equal(t, tt.want, l.Message(tt.lang, tt.res))
		})
	}
}

func TestTranslationsCoverEveryKey(t *testing.T) {
	english := translations[language.English]
	for tag, msgs := range translations {
		assert.Len(t, msgs, len(english), "language %s", tag)
		for key := range english {
			assert.Contains(t, msgs, key, "language %s", tag)
		}
	}
}

func TestCueFor(t *testing.T) {
	assert.Equal(t, CueSuccess, CueFor(scancode.OK))
	assert.Equal(t, CueWarning, CueFor(scancode.Exists))
	assert.Equal(t, CueWarning, CueFor(scancode.RuleNotFound))
	assert.Equal(t, CueFailure, CueFor(scancode.WrongPrefix))
	assert.Equal(t, CueFailure, CueFor(scancode.PartNOK))
	assert.Equal(t, CueFailure, CueFor(scancode.Internal))
}
