package orchestration

import "github.com/koscakluka/ema-ui/core/realtime"

// attachHandle stores handle for sessionID. It reports false if the session
// was ended while the handle was being opened.
func (o *Orchestrator) attachHandle(sessionID string, handle realtime.Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionID != sessionID {
		return false
	}
	o.handle = handle
	return true
}

// endSession forgets sessionID and its handle. It reports false if another
// session has already replaced it.
func (o *Orchestrator) endSession(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionID != sessionID {
		return false
	}
	o.sessionID = ""
	o.handle = nil
	return true
}

func (o *Orchestrator) isActive(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sessionID != "" && o.sessionID == sessionID
}

func (o *Orchestrator) activeHandle() (realtime.Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == nil {
		return nil, ErrNotConnected
	}
	return o.handle, nil
}
