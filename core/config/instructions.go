package config

import (
	"fmt"
	"strings"
)

// LanguageDirective is the instruction pinning the spoken language.
func (e Effective) LanguageDirective() string {
	return fmt.Sprintf("You must always speak and respond in %s, even if the user speaks another language.", LanguageName(e.Language))
}

// TranscriptionLanguage returns the language hint for transcription, or an
// empty string when the configured language is outside the supported set.
func (e Effective) TranscriptionLanguage() string {
	if !SupportsTranscription(e.Language) {
		return ""
	}
	return baseCode(e.Language)
}

// Instructions composes the system instructions sent to the backend.
func (e Effective) Instructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your name is %s.", e.Agent.Name)
	if e.Agent.Instructions != "" {
		b.WriteString("\n\n")
		b.WriteString(e.Agent.Instructions)
	}
	b.WriteString("\n\n")
	b.WriteString(e.LanguageDirective())

	if !e.UI.Enabled {
		return b.String()
	}

	b.WriteString("\n\nYou can see and operate the user's screen. ")
	b.WriteString("Messages may carry a snapshot of the screen marked as reference context; never read it aloud. ")
	b.WriteString("Elements you can act on are tagged like [#e12] and carry a matching data-ema-id attribute. ")
	switch e.Profile {
	case ProfileInspect:
		b.WriteString("Call describe_surface to look at the current screen before acting, then call perform_action. ")
		b.WriteString("perform_action returns the screen as it looks after the action; check it and correct yourself if needed.")
	default:
		b.WriteString("Call perform_action with a short spoken explanation and, when something must change on screen, JavaScript that performs it.")
	}
	return b.String()
}

// GreetingMessage composes the message sent on connect when auto-greet is
// enabled. A non-empty snapshot is appended as non-spoken reference context.
func (e Effective) GreetingMessage(snapshot string) string {
	greeting := e.Greeting
	if greeting == DefaultGreeting {
		greeting = LocalizedGreeting(e.Language)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Greet the user by saying \"%s\". %s", greeting, e.LanguageDirective())
	if snapshot != "" {
		b.WriteString("\n\n")
		b.WriteString(ReferenceContext(snapshot))
	}
	return b.String()
}

// ReferenceContext wraps a surface snapshot so the agent treats it as
// background information rather than something to speak.
func ReferenceContext(snapshot string) string {
	return "[Reference only, do not read aloud] Current screen:\n" + snapshot
}
