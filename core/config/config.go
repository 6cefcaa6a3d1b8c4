// Package config normalizes user supplied session configuration into a single
// effective configuration with every optional field filled in.
package config

import (
	"errors"
	"time"

	"github.com/koscakluka/ema-ui/core/surface"
)

var (
	ErrMissingAPIKey = errors.New("config: connection credential is required")
	ErrMissingAgent  = errors.New("config: agent persona is required")
)

// Profile selects the tool contract exposed to the agent and the signals that
// drive turn-taking.
type Profile string

const (
	// ProfileDirect exposes a single action tool and derives turn state from
	// the coarse agent start/end boundaries.
	ProfileDirect Profile = "direct"
	// ProfileInspect exposes a surface inspection tool next to the action
	// tool, returns the refreshed surface after every action and derives turn
	// state from audio playback boundaries.
	ProfileInspect Profile = "inspect"
)

const (
	DefaultModel              = "gpt-realtime"
	DefaultVoice              = "alloy"
	DefaultLanguage           = "en"
	DefaultGreeting           = "Hello!"
	DefaultAgentName          = "Assistant"
	DefaultTranscriptionModel = "whisper-1"
	DefaultUpdateInterval     = 5000 * time.Millisecond
	DefaultTokenBudget        = 2000
	DefaultMaxIterations      = 5
)

// Config is the partial configuration supplied by the host. Zero values (and
// nil pointers) mean "use the default".
type Config struct {
	APIKey   string  `yaml:"api_key"`
	Agent    *Agent  `yaml:"agent"`
	Language string  `yaml:"language"`
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Profile  Profile `yaml:"profile"`
	UI       *UI     `yaml:"ui"`

	AutoGreet          *bool  `yaml:"auto_greet"`
	Greeting           string `yaml:"greeting"`
	Debug              *bool  `yaml:"debug"`
	AutoExecuteActions *bool  `yaml:"auto_execute_actions"`

	TranscriptionModel string `yaml:"transcription_model"`
}

type Agent struct {
	Name         string `yaml:"name"`
	Instructions string `yaml:"instructions"`
}

type UI struct {
	Enabled bool `yaml:"enabled"`
	// Surface is the live document the agent acts on. It can only be set in
	// code.
	Surface        surface.Surface `yaml:"-"`
	AutoUpdate     *bool           `yaml:"auto_update"`
	UpdateInterval time.Duration   `yaml:"update_interval"`
	Compression    *Compression    `yaml:"compression"`
}

type Compression struct {
	TokenBudget       int   `yaml:"token_budget"`
	MaxIterations     int   `yaml:"max_iterations"`
	AssignIdentifiers *bool `yaml:"assign_identifiers"`
}

// Effective is the normalized configuration. It is a plain value and is
// copied, never shared, so it cannot change once built.
type Effective struct {
	APIKey             string
	Agent              Agent
	Language           string
	Model              string
	Voice              string
	Profile            Profile
	AutoGreet          bool
	Greeting           string
	Debug              bool
	AutoExecuteActions bool
	TranscriptionModel string
	UI                 EffectiveUI
}

type EffectiveUI struct {
	Enabled        bool
	Surface        surface.Surface
	AutoUpdate     bool
	UpdateInterval time.Duration
	Compression    EffectiveCompression
}

type EffectiveCompression struct {
	TokenBudget       int
	MaxIterations     int
	AssignIdentifiers bool
}

// Normalize merges cfg with the documented defaults. It fails when the
// connection credential or the agent persona is missing.
func Normalize(cfg Config) (Effective, error) {
	var errs []error
	if cfg.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if cfg.Agent == nil || (cfg.Agent.Name == "" && cfg.Agent.Instructions == "") {
		errs = append(errs, ErrMissingAgent)
	}
	if err := errors.Join(errs...); err != nil {
		return Effective{}, err
	}

	effective := Effective{
		APIKey:             cfg.APIKey,
		Agent:              Agent{Name: orDefault(cfg.Agent.Name, DefaultAgentName), Instructions: cfg.Agent.Instructions},
		Language:           orDefault(cfg.Language, DefaultLanguage),
		Model:              orDefault(cfg.Model, DefaultModel),
		Voice:              orDefault(cfg.Voice, DefaultVoice),
		Profile:            orDefault(cfg.Profile, ProfileDirect),
		AutoGreet:          boolOrDefault(cfg.AutoGreet, true),
		Greeting:           orDefault(cfg.Greeting, DefaultGreeting),
		Debug:              boolOrDefault(cfg.Debug, false),
		AutoExecuteActions: boolOrDefault(cfg.AutoExecuteActions, true),
		TranscriptionModel: orDefault(cfg.TranscriptionModel, DefaultTranscriptionModel),
		UI: EffectiveUI{
			UpdateInterval: DefaultUpdateInterval,
			Compression: EffectiveCompression{
				TokenBudget:       DefaultTokenBudget,
				MaxIterations:     DefaultMaxIterations,
				AssignIdentifiers: true,
			},
		},
	}

	if ui := cfg.UI; ui != nil {
		effective.UI.Enabled = ui.Enabled
		effective.UI.Surface = ui.Surface
		effective.UI.AutoUpdate = boolOrDefault(ui.AutoUpdate, false)
		if ui.UpdateInterval > 0 {
			effective.UI.UpdateInterval = ui.UpdateInterval
		}
		if compression := ui.Compression; compression != nil {
			if compression.TokenBudget > 0 {
				effective.UI.Compression.TokenBudget = compression.TokenBudget
			}
			if compression.MaxIterations > 0 {
				effective.UI.Compression.MaxIterations = compression.MaxIterations
			}
			effective.UI.Compression.AssignIdentifiers = boolOrDefault(compression.AssignIdentifiers, true)
		}
	}

	return effective, nil
}

func orDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// Bool returns a pointer to v, for filling tri-state fields.
func Bool(v bool) *bool { return &v }
