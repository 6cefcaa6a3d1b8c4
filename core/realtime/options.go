package realtime

type TranscriptionOptions struct {
	Model string
	// Language is omitted from the backend request when empty.
	Language string
}

type SessionOptions struct {
	Model         string
	Voice         string
	Instructions  string
	Transcription TranscriptionOptions
	Tools         []Tool

	HistoryCallback    func(items []Item)
	ErrorCallback      func(err error)
	AgentStartCallback func()
	AgentEndCallback   func()
	AudioStartCallback func()
	AudioEndCallback   func()
	UserAudioCallback  func()
}

type SessionOption func(*SessionOptions)

func WithModel(model string) SessionOption {
	return func(o *SessionOptions) {
		o.Model = model
	}
}

func WithVoice(voice string) SessionOption {
	return func(o *SessionOptions) {
		o.Voice = voice
	}
}

func WithInstructions(instructions string) SessionOption {
	return func(o *SessionOptions) {
		o.Instructions = instructions
	}
}

func WithTranscription(transcription TranscriptionOptions) SessionOption {
	return func(o *SessionOptions) {
		o.Transcription = transcription
	}
}

func WithTools(tools ...Tool) SessionOption {
	return func(o *SessionOptions) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithHistoryCallback registers a callback receiving the full item list every
// time it changes. Each call replaces the previous list; it is not a delta.
func WithHistoryCallback(callback func(items []Item)) SessionOption {
	return func(o *SessionOptions) {
		o.HistoryCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) {
		o.ErrorCallback = callback
	}
}

// WithAgentStartCallback registers a callback for the coarse boundary where
// the agent starts producing a response.
func WithAgentStartCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.AgentStartCallback = callback
	}
}

func WithAgentEndCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.AgentEndCallback = callback
	}
}

// WithAudioStartCallback registers a callback for the finer boundary where
// agent audio starts playing.
func WithAudioStartCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.AudioStartCallback = callback
	}
}

func WithAudioEndCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.AudioEndCallback = callback
	}
}

func WithUserAudioCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.UserAudioCallback = callback
	}
}

// Apply folds opts into a SessionOptions value. Callbacks that were not set
// are no-ops, so implementations can call them unconditionally.
func Apply(opts ...SessionOption) SessionOptions {
	options := SessionOptions{
		HistoryCallback:    func([]Item) {},
		ErrorCallback:      func(error) {},
		AgentStartCallback: func() {},
		AgentEndCallback:   func() {},
		AudioStartCallback: func() {},
		AudioEndCallback:   func() {},
		UserAudioCallback:  func() {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
