package config

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// transcriptionLanguages is the set of language codes the backend accepts as
// a transcription hint. Other codes are still spoken, but transcription falls
// back to auto-detection.
var transcriptionLanguages = map[string]struct{}{
	"ar": {}, "de": {}, "en": {}, "es": {}, "fr": {}, "hi": {}, "id": {},
	"it": {}, "ja": {}, "ko": {}, "nl": {}, "pl": {}, "pt": {}, "ru": {},
	"sv": {}, "th": {}, "tr": {}, "uk": {}, "vi": {}, "zh": {},
}

var greetings = map[string]string{
	"ar": "مرحبا!",
	"de": "Hallo!",
	"en": DefaultGreeting,
	"es": "¡Hola!",
	"fr": "Bonjour !",
	"hi": "नमस्ते!",
	"it": "Ciao!",
	"ja": "こんにちは！",
	"ko": "안녕하세요!",
	"nl": "Hallo!",
	"pl": "Cześć!",
	"pt": "Olá!",
	"ru": "Привет!",
	"tr": "Merhaba!",
	"zh": "你好！",
}

// LanguageName returns the English name of a language code, e.g. "Hindi" for
// "hi". Unknown codes are returned unchanged.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// LocalizedGreeting returns the greeting for a language code, or the default
// English greeting when none is known.
func LocalizedGreeting(code string) string {
	if greeting, ok := greetings[baseCode(code)]; ok {
		return greeting
	}
	return DefaultGreeting
}

// SupportsTranscription reports whether code can be passed to the backend as
// a transcription language.
func SupportsTranscription(code string) bool {
	_, ok := transcriptionLanguages[baseCode(code)]
	return ok
}

func baseCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, _, found := strings.Cut(code, "-"); found {
		return base
	}
	return code
}
