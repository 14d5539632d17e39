// Package lang is the registry of languages the translation pipeline
// accepts. Codes are ISO 639-1; the MT engine additionally needs the
// NLLB-style script-qualified codes, kept here so engines stay dumb.
package lang

import "github.com/jeferson-byte-ai/Orbis/internal/domain"

// Auto asks ASR to detect the source language instead of trusting the hint.
const Auto domain.Language = "auto"

type Info struct {
	Code       domain.Language `json:"code"`
	Name       string          `json:"name"`
	NativeName string          `json:"nativeName"`
}

// Supported holds the 50 languages the product ships with, most spoken first.
var Supported = []Info{
	{"en", "English", "English"},
	{"zh", "Chinese", "中文"},
	{"hi", "Hindi", "हिन्दी"},
	{"es", "Spanish", "Español"},
	{"ar", "Arabic", "العربية"},
	{"bn", "Bengali", "বাংলা"},
	{"pt", "Portuguese", "Português"},
	{"ru", "Russian", "Русский"},
	{"ja", "Japanese", "日本語"},
	{"pa", "Punjabi", "ਪੰਜਾਬੀ"},
	{"de", "German", "Deutsch"},
	{"jv", "Javanese", "Basa Jawa"},
	{"ko", "Korean", "한국어"},
	{"fr", "French", "Français"},
	{"te", "Telugu", "తెలుగు"},
	{"mr", "Marathi", "मराठी"},
	{"tr", "Turkish", "Türkçe"},
	{"ta", "Tamil", "தமிழ்"},
	{"vi", "Vietnamese", "Tiếng Việt"},
	{"ur", "Urdu", "اردو"},
	{"it", "Italian", "Italiano"},
	{"th", "Thai", "ไทย"},
	{"gu", "Gujarati", "ગુજરાતી"},
	{"pl", "Polish", "Polski"},
	{"uk", "Ukrainian", "Українська"},
	{"ml", "Malayalam", "മലയാളം"},
	{"kn", "Kannada", "ಕನ್ನಡ"},
	{"or", "Odia", "ଓଡ଼ିଆ"},
	{"fa", "Persian", "فارسی"},
	{"my", "Burmese", "မြန်မာ"},
	{"nl", "Dutch", "Nederlands"},
	{"ro", "Romanian", "Română"},
	{"cs", "Czech", "Čeština"},
	{"sv", "Swedish", "Svenska"},
	{"el", "Greek", "Ελληνικά"},
	{"hu", "Hungarian", "Magyar"},
	{"he", "Hebrew", "עברית"},
	{"fi", "Finnish", "Suomi"},
	{"da", "Danish", "Dansk"},
	{"no", "Norwegian", "Norsk"},
	{"id", "Indonesian", "Bahasa Indonesia"},
	{"ms", "Malay", "Bahasa Melayu"},
	{"fil", "Filipino", "Filipino"},
	{"sw", "Swahili", "Kiswahili"},
	{"bg", "Bulgarian", "Български"},
	{"sk", "Slovak", "Slovenčina"},
	{"hr", "Croatian", "Hrvatski"},
	{"sr", "Serbian", "Српски"},
	{"lt", "Lithuanian", "Lietuvių"},
	{"sl", "Slovenian", "Slovenščina"},
}

var byCode = func() map[domain.Language]Info {
	m := make(map[domain.Language]Info, len(Supported))
	for _, info := range Supported {
		m[info.Code] = info
	}
	return m
}()

// nllbCodes maps ISO codes to the script-qualified codes NLLB-family
// models expect. Languages outside this map fall back to English.
var nllbCodes = map[domain.Language]string{
	"en": "eng_Latn",
	"pt": "por_Latn",
	"es": "spa_Latn",
	"fr": "fra_Latn",
	"de": "deu_Latn",
	"it": "ita_Latn",
	"ja": "jpn_Jpan",
	"ko": "kor_Hang",
	"zh": "zho_Hans",
	"ar": "arb_Arab",
	"ru": "rus_Cyrl",
	"hi": "hin_Deva",
	"nl": "nld_Latn",
	"pl": "pol_Latn",
	"tr": "tur_Latn",
	"sv": "swe_Latn",
	"no": "nob_Latn",
	"da": "dan_Latn",
	"fi": "fin_Latn",
}

// IsSupported reports whether code can be used as a source or target
// language. "auto" is valid as a source only; callers gate that.
func IsSupported(code domain.Language) bool {
	_, ok := byCode[code]
	return ok
}

func Lookup(code domain.Language) (Info, bool) {
	info, ok := byCode[code]
	return info, ok
}

// Name returns the English name for code, or the code itself when unknown.
func Name(code domain.Language) string {
	if info, ok := byCode[code]; ok {
		return info.Name
	}
	return string(code)
}

// NLLBCode returns the script-qualified model code for code.
func NLLBCode(code domain.Language) string {
	if c, ok := nllbCodes[code]; ok {
		return c
	}
	return "eng_Latn"
}
