package engine

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var defaultVoiceTableYAML []byte

// Voice is a single named TTS voice entry within a language.
type Voice struct {
	Name         string
	Sex          string
	Language     string
	LanguageCode Language
}

type voiceTableFile struct {
	Languages map[string]struct {
		Language string `yaml:"language"`
		Voices   map[string]struct {
			Sex string `yaml:"sex"`
		} `yaml:"voices"`
	} `yaml:"languages"`
}

var friendlyNameToCode = map[string]Language{
	"english": "en-US",
	"russian": "ru-RU",
	"turkish": "tr-TR",
}

// VoiceManager serves the declarative language -> voice table. It is a pure
// lookup structure with no network or filesystem dependency at call time;
// all parsing happens once, at construction.
type VoiceManager struct {
	voices map[Language]map[string]Voice
}

// NewVoiceManager parses the built-in voice table embedded at build time.
func NewVoiceManager() (*VoiceManager, error) {
	return NewVoiceManagerFromYAML(defaultVoiceTableYAML)
}

// NewVoiceManagerFromYAML lets an embedder supply a custom voice table in
// the same shape, overriding the built-in one.
func NewVoiceManagerFromYAML(data []byte) (*VoiceManager, error) {
	var file voiceTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, newEngineError(ErrKindParseError, err)
	}

	vm := &VoiceManager{voices: make(map[Language]map[string]Voice)}
	for code, langData := range file.Languages {
		lang := Language(code)
		vm.voices[lang] = make(map[string]Voice)
		for name, info := range langData.Voices {
			sex := info.Sex
			if sex == "" {
				sex = "unknown"
			}
			vm.voices[lang][name] = Voice{
				Name:         name,
				Sex:          sex,
				Language:     langData.Language,
				LanguageCode: lang,
			}
		}
	}
	return vm, nil
}

// GetVoice returns a voice for the language, optionally matching a sex
// preference. Falls back to any voice for the language when no preference
// is given or matched.
func (vm *VoiceManager) GetVoice(lang Language, sex string) (Voice, bool) {
	voices, ok := vm.voices[lang]
	if !ok || len(voices) == 0 {
		return Voice{}, false
	}
	if sex != "" {
		for _, v := range voices {
			if strings.EqualFold(v.Sex, sex) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		return v, true
	}
	return Voice{}, false
}

// GetDefaultVoice is GetVoice with no sex preference.
func (vm *VoiceManager) GetDefaultVoice(lang Language) (Voice, bool) {
	return vm.GetVoice(lang, "")
}

// ListVoices returns every voice configured for a language.
func (vm *VoiceManager) ListVoices(lang Language) []Voice {
	voices, ok := vm.voices[lang]
	if !ok {
		return nil
	}
	out := make([]Voice, 0, len(voices))
	for _, v := range voices {
		out = append(out, v)
	}
	return out
}

// GetAvailableLanguages maps every configured language code to its friendly
// display name.
func (vm *VoiceManager) GetAvailableLanguages() map[Language]string {
	result := make(map[Language]string)
	for lang, voices := range vm.voices {
		for _, v := range voices {
			result[lang] = v.Language
			break
		}
	}
	return result
}

// GetLanguageCode resolves a friendly name ("English", "Russian", "Turkish")
// to its BCP-47 code. Matching is case-insensitive.
func GetLanguageCode(friendlyName string) (Language, bool) {
	code, ok := friendlyNameToCode[strings.ToLower(friendlyName)]
	return code, ok
}
