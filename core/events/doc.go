// Package events defines the typed event contract published to the host.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - transcript.*
//   - turn.*
//   - ui.*
//
// session events
//
//   - StatusChanged (session.status_changed): connection status changed.
//   - ConversationStateChanged (session.conversation_state_changed): turn
//     state changed.
//   - StateChanged (session.state_changed): consolidated state after any
//     status, turn or history change.
//   - Error (session.error): connection or runtime error, as text.
//   - Connected (session.connected): the realtime session is open.
//   - Disconnected (session.disconnected): the realtime session was closed.
//
// transcript events
//
//   - MessageAdded (transcript.message): a message was appended to the
//     history. Fired once per new message, in order.
//   - HistoryChanged (transcript.history_changed): full current history.
//
// turn events
//
//   - AgentStarted (turn.agent_started): the agent started a response.
//   - AgentEnded (turn.agent_ended): the agent finished a response.
//   - AudioStarted (turn.audio_started): agent audio playback started.
//   - AudioEnded (turn.audio_ended): agent audio playback stopped.
//   - UserAudio (turn.user_audio): user speech was detected.
//
// ui events
//
//   - ActionRequested (ui.action): the agent requested a UI action. Fired
//     before any execution, so the host can inspect or veto it.
package events
