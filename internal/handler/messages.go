package handler

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

// Cue is the sound a terminal plays for a result
type Cue string

const (
	CueSuccess Cue = "success"
	CueWarning Cue = "warning"
	CueFailure Cue = "failure"
)

// CueFor picks the audio cue of a reason. Conflicts and configuration
// problems need the operator to look at the screen, not to reject a part.
func CueFor(reason scancode.Reason) Cue {
	switch reason.Category() {
	case scancode.CategoryOK:
		return CueSuccess
	case scancode.CategoryConflict, scancode.CategoryConfiguration:
		return CueWarning
	default:
		return CueFailure
	}
}

const (
	keyUnitAccepted    = "ok.unit"
	keyContainerClosed = "ok.container"
	keyPalletClosed    = "ok.pallet"
	keyReworked        = "ok.rework"
	keyNothingToClose  = "ok.empty"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.German,
	language.Polish,
}

var translations = map[language.Tag]map[string]string{
	language.English: {
		keyUnitAccepted:    "Unit accepted",
		keyContainerClosed: "Box closed, %d units moved to pallet",
		keyPalletClosed:    "Pallet closed, %d units moved to warehouse",
		keyReworked:        "%d units sent to rework",
		keyNothingToClose:  "Nothing to close",

		string(scancode.RuleNotFound):             "No scan rule for this article, select the article again",
		string(scancode.RuleInvalid):              "Scan rule of this article is broken, contact IT",
		string(scancode.SizeMissing):              "Packaging size not configured for this article",
		string(scancode.InvalidRequest):           "Missing or invalid field: %s",
		string(scancode.WrongLength):              "Wrong code length",
		string(scancode.WrongPrefix):              "Code does not belong to this article",
		string(scancode.WrongSuffix):              "Code variant does not match this article",
		string(scancode.StaleDate):                "Production date out of range",
		string(scancode.MalformedBatch):           "Label unreadable, scan again",
		string(scancode.WrongArticle):             "Label belongs to another article",
		string(scancode.WrongQuantity):            "Label quantity does not match packaging size",
		string(scancode.WrongProcess):             "Label process code not allowed",
		string(scancode.Exists):                   "Already scanned",
		string(scancode.NotFound):                 "Nothing to rework for this code",
		string(scancode.ExternalCheckFailed):      "Part has no passing inspection",
		string(scancode.ExternalCheckUnavailable): "Inspection database unavailable",
		string(scancode.PartNotFound):             "Part unknown to quality system",
		string(scancode.PartUnknown):              "Part status unknown",
		string(scancode.PartNOK):                  "Part rejected by quality system",
		string(scancode.PartPattern):              "Part is a pattern sample",
		string(scancode.FetchError):               "Quality system unreachable",
		string(scancode.Internal):                 "Unexpected error, contact IT",
	},
	language.German: {
		keyUnitAccepted:    "Teil angenommen",
		keyContainerClosed: "Karton geschlossen, %d Teile auf Palette",
		keyPalletClosed:    "Palette geschlossen, %d Teile ins Lager",
		keyReworked:        "%d Teile in Nacharbeit",
		keyNothingToClose:  "Nichts zu schließen",

		string(scancode.RuleNotFound):             "Keine Scanregel für diesen Artikel, Artikel neu wählen",
		string(scancode.RuleInvalid):              "Scanregel des Artikels fehlerhaft, IT kontaktieren",
		string(scancode.SizeMissing):              "Verpackungsgröße für diesen Artikel fehlt",
		string(scancode.InvalidRequest):           "Feld fehlt oder ungültig: %s",
		string(scancode.WrongLength):              "Falsche Codelänge",
		string(scancode.WrongPrefix):              "Code gehört nicht zu diesem Artikel",
		string(scancode.WrongSuffix):              "Codevariante passt nicht zum Artikel",
		string(scancode.StaleDate):                "Produktionsdatum außerhalb des Zeitfensters",
		string(scancode.MalformedBatch):           "Etikett unlesbar, erneut scannen",
		string(scancode.WrongArticle):             "Etikett gehört zu anderem Artikel",
		string(scancode.WrongQuantity):            "Etikettmenge passt nicht zur Verpackungsgröße",
		string(scancode.WrongProcess):             "Prozesscode auf Etikett nicht erlaubt",
		string(scancode.Exists):                   "Bereits gescannt",
		string(scancode.NotFound):                 "Nichts zur Nacharbeit gefunden",
		string(scancode.ExternalCheckFailed):      "Teil ohne bestandene Prüfung",
		string(scancode.ExternalCheckUnavailable): "Prüfdatenbank nicht erreichbar",
		string(scancode.PartNotFound):             "Teil im Qualitätssystem unbekannt",
		string(scancode.PartUnknown):              "Teilestatus unbekannt",
		string(scancode.PartNOK):                  "Teil vom Qualitätssystem gesperrt",
		string(scancode.PartPattern):              "Teil ist ein Musterteil",
		string(scancode.FetchError):               "Qualitätssystem nicht erreichbar",
		string(scancode.Internal):                 "Unerwarteter Fehler, IT kontaktieren",
	},
	language.Polish: {
		keyUnitAccepted:    "Sztuka przyjęta",
		keyContainerClosed: "Karton zamknięty, %d szt. na palecie",
		keyPalletClosed:    "Paleta zamknięta, %d szt. w magazynie",
		keyReworked:        "%d szt. skierowano do naprawy",
		keyNothingToClose:  "Brak opakowania do zamknięcia",

		string(scancode.RuleNotFound):             "Brak reguły skanowania dla artykułu, wybierz artykuł ponownie",
		string(scancode.RuleInvalid):              "Reguła skanowania artykułu jest błędna, skontaktuj się z IT",
		string(scancode.SizeMissing):              "Brak rozmiaru opakowania dla artykułu",
		string(scancode.InvalidRequest):           "Brakujące lub błędne pole: %s",
		string(scancode.WrongLength):              "Błędna długość kodu",
		string(scancode.WrongPrefix):              "Kod nie należy do tego artykułu",
		string(scancode.WrongSuffix):              "Wariant kodu nie pasuje do artykułu",
		string(scancode.StaleDate):                "Data produkcji poza zakresem",
		string(scancode.MalformedBatch):           "Etykieta nieczytelna, zeskanuj ponownie",
		string(scancode.WrongArticle):             "Etykieta innego artykułu",
		string(scancode.WrongQuantity):            "Ilość na etykiecie niezgodna z opakowaniem",
		string(scancode.WrongProcess):             "Niedozwolony kod procesu na etykiecie",
		string(scancode.Exists):                   "Już zeskanowano",
		string(scancode.NotFound):                 "Brak sztuk do naprawy dla tego kodu",
		string(scancode.ExternalCheckFailed):      "Sztuka bez pozytywnej kontroli",
		string(scancode.ExternalCheckUnavailable): "Baza kontroli niedostępna",
		string(scancode.PartNotFound):             "Sztuka nieznana w systemie jakości",
		string(scancode.PartUnknown):              "Nieznany status sztuki",
		string(scancode.PartNOK):                  "Sztuka odrzucona przez system jakości",
		string(scancode.PartPattern):              "Sztuka jest wzorcem",
		string(scancode.FetchError):               "System jakości nieosiągalny",
		string(scancode.Internal):                 "Nieoczekiwany błąd, skontaktuj się z IT",
	},
}

// Localizer renders operator messages in the terminal's language
type Localizer struct {
	matcher language.Matcher
	catalog *catalog.Builder
}

// NewLocalizer builds the message catalog
func NewLocalizer() *Localizer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(fmt.Sprintf("messages: %s %s: %v", tag, key, err))
			}
		}
	}
	return &Localizer{
		matcher: language.NewMatcher(supportedLanguages),
		catalog: b,
	}
}

// Language picks the best supported language for an Accept-Language header
func (l *Localizer) Language(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := l.matcher.Match(tags...)
	return supportedLanguages[idx]
}

// Message renders the operator message of a result
func (l *Localizer) Message(acceptLanguage string, res *service.Result) string {
	p := message.NewPrinter(l.Language(acceptLanguage), message.Catalog(l.catalog))

	switch {
	case res.Reason == scancode.InvalidRequest:
		return p.Sprintf(string(res.Reason), res.Field)
	case !res.Reason.Accepted():
		return p.Sprintf(string(res.Reason))
	case res.Reworked > 0:
		return p.Sprintf(keyReworked, res.Reworked)
	case res.Kind == service.KindContainer && res.Promoted > 0:
		return p.Sprintf(keyContainerClosed, res.Promoted)
	case res.Kind == service.KindPallet && res.Promoted > 0:
		return p.Sprintf(keyPalletClosed, res.Promoted)
	case res.Kind == service.KindContainer || res.Kind == service.KindPallet:
		return p.Sprintf(keyNothingToClose)
	default:
		return p.Sprintf(keyUnitAccepted)
	}
}
