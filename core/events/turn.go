package events

const (
	KindAgentStarted Kind = "turn.agent_started"
	KindAgentEnded   Kind = "turn.agent_ended"
	KindAudioStarted Kind = "turn.audio_started"
	KindAudioEnded   Kind = "turn.audio_ended"
	KindUserAudio    Kind = "turn.user_audio"
)

type AgentStarted struct{ Base }

func NewAgentStarted() AgentStarted { return AgentStarted{Base: NewBase(KindAgentStarted)} }

type AgentEnded struct{ Base }

func NewAgentEnded() AgentEnded { return AgentEnded{Base: NewBase(KindAgentEnded)} }

type AudioStarted struct{ Base }

func NewAudioStarted() AudioStarted { return AudioStarted{Base: NewBase(KindAudioStarted)} }

type AudioEnded struct{ Base }

func NewAudioEnded() AudioEnded { return AudioEnded{Base: NewBase(KindAudioEnded)} }

type UserAudio struct{ Base }

func NewUserAudio() UserAudio { return UserAudio{Base: NewBase(KindUserAudio)} }
