// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Language is a subtitle language.
type Language struct {
	Code string // ISO 639-1
	Name string // English display name, also used in translation prompts
}

// SourceLanguage is the transcription language and the default subtitle.
var SourceLanguage = Language{Code: "en", Name: "English"}

// TargetLanguages is the fixed translation fan-out, in dispatch order.
var TargetLanguages = []Language{
	{Code: "vi", Name: "Vietnamese"},
	{Code: "zh", Name: "Chinese (Simplified)"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "pt", Name: "Portuguese"},
}

// LookupLanguage finds a known language by code.
func LookupLanguage(code string) (Language, bool) {
	if code == SourceLanguage.Code {
		return SourceLanguage, true
	}
	for _, l := range TargetLanguages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}
