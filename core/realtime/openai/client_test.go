package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-ui/core/realtime"
)

type fakeServer struct {
	t        *testing.T
	server   *httptest.Server
	conns    chan *websocket.Conn
	requests chan *http.Request
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{t: t, conns: make(chan *websocket.Conn, 1), requests: make(chan *http.Request, 1)}
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests <- r
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		f.conns <- conn
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) accept() *websocket.Conn {
	f.t.Helper()
	select {
	case conn := <-f.conns:
		f.t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(time.Second):
		f.t.Fatalf("expected a websocket connection")
		return nil
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read client event: %v", err)
	}
	return event
}

func writeEvent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
		t.Fatalf("failed to write server event: %v", err)
	}
}

type recorder struct {
	mu      sync.Mutex
	history [][]realtime.Item
	errs    []error
	signals []string
	notify  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) options() []realtime.SessionOption {
	signal := func(name string) func() {
		return func() { r.record(func() { r.signals = append(r.signals, name) }) }
	}
	return []realtime.SessionOption{
		realtime.WithHistoryCallback(func(items []realtime.Item) { r.record(func() { r.history = append(r.history, items) }) }),
		realtime.WithErrorCallback(func(err error) { r.record(func() { r.errs = append(r.errs, err) }) }),
		realtime.WithAgentStartCallback(signal("agent_start")),
		realtime.WithAgentEndCallback(signal("agent_end")),
		realtime.WithAudioStartCallback(signal("audio_start")),
		realtime.WithAudioEndCallback(signal("audio_end")),
		realtime.WithUserAudioCallback(signal("user_audio")),
	}
}

func (r *recorder) record(update func()) {
	r.mu.Lock()
	update()
	r.mu.Unlock()
	r.notify <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	t.Helper()
	for range n {
		select {
		case <-r.notify:
		case <-time.After(time.Second):
			t.Fatalf("expected %d callbacks", n)
		}
	}
}

func TestOpenConfiguresSession(t *testing.T) {
	server := newFakeServer(t)
	client := NewClient(WithBaseURL(server.server.URL + "/v1"))

	tool := realtime.Tool{Name: "perform_action", Description: "Act"}
	handle, err := client.Open(context.Background(), "secret",
		realtime.WithModel("gpt-realtime-mini"),
		realtime.WithVoice("verse"),
		realtime.WithInstructions("Be brief."),
		realtime.WithTranscription(realtime.TranscriptionOptions{Model: "whisper-1"}),
		realtime.WithTools(tool),
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer handle.Close()

	request := <-server.requests
	if request.URL.Path != "/v1/realtime" || request.URL.Query().Get("model") != "gpt-realtime-mini" {
		t.Fatalf("unexpected request url %q", request.URL.String())
	}
	if request.Header.Get("Authorization") != "Bearer secret" {
		t.Fatalf("expected bearer credential, got %q", request.Header.Get("Authorization"))
	}

	conn := server.accept()
	event := readEvent(t, conn)
	if event["type"] != "session.update" {
		t.Fatalf("expected session.update, got %v", event["type"])
	}
	if id, _ := event["event_id"].(string); !strings.HasPrefix(id, "evt_") {
		t.Fatalf("expected generated event id, got %q", id)
	}

	session := event["session"].(map[string]any)
	if session["voice"] != "verse" || session["instructions"] != "Be brief." {
		t.Fatalf("unexpected session config %v", session)
	}
	transcription := session["input_audio_transcription"].(map[string]any)
	if _, ok := transcription["language"]; ok {
		t.Fatalf("expected empty language to be omitted, got %v", transcription)
	}
	tools := session["tools"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["type"] != "function" || tools[0].(map[string]any)["name"] != "perform_action" {
		t.Fatalf("unexpected tools %v", tools)
	}
}

func TestOpenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient(WithBaseURL(server.URL)).Open(context.Background(), "bad")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestSendAndInterrupt(t *testing.T) {
	server := newFakeServer(t)
	handle, err := NewClient(WithBaseURL(server.server.URL)).Open(context.Background(), "secret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	conn := server.accept()
	readEvent(t, conn)

	if err := handle.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	item := readEvent(t, conn)
	if item["type"] != "conversation.item.create" {
		t.Fatalf("expected item create, got %v", item["type"])
	}
	content := item["item"].(map[string]any)["content"].([]any)[0].(map[string]any)
	if content["type"] != "input_text" || content["text"] != "hello" {
		t.Fatalf("unexpected content %v", content)
	}
	if response := readEvent(t, conn); response["type"] != "response.create" {
		t.Fatalf("expected response.create, got %v", response["type"])
	}

	if err := handle.Interrupt(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cancel := readEvent(t, conn); cancel["type"] != "response.cancel" {
		t.Fatalf("expected response.cancel, got %v", cancel["type"])
	}

	if err := handle.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if err := handle.Send(context.Background(), "late"); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}

func TestHistoryStreaming(t *testing.T) {
	server := newFakeServer(t)
	rec := newRecorder()
	handle, err := NewClient(WithBaseURL(server.server.URL)).Open(context.Background(), "secret", rec.options()...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer handle.Close()
	conn := server.accept()
	readEvent(t, conn)

	writeEvent(t, conn, `{"type":"conversation.item.created","item":{"id":"item_1","type":"message","role":"user","content":[{"type":"input_audio"}]}}`)
	writeEvent(t, conn, `{"type":"conversation.item.input_audio_transcription.completed","item_id":"item_1","content_index":0,"transcript":"hi there"}`)
	writeEvent(t, conn, `{"type":"response.output_item.added","item":{"id":"item_2","type":"message","role":"assistant","content":[]}}`)
	writeEvent(t, conn, `{"type":"response.content_part.added","item_id":"item_2","content_index":0,"part":{"type":"audio"}}`)
	writeEvent(t, conn, `{"type":"response.audio_transcript.delta","item_id":"item_2","content_index":0,"delta":"Hel"}`)
	writeEvent(t, conn, `{"type":"response.audio_transcript.delta","item_id":"item_2","content_index":0,"delta":"lo"}`)
	rec.wait(t, 6)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	last := rec.history[len(rec.history)-1]
	if len(last) != 2 {
		t.Fatalf("expected 2 items, got %d", len(last))
	}
	if got := *last[0].Content[0].Transcript; got != "hi there" {
		t.Fatalf("expected user transcript, got %q", got)
	}
	if got := *last[1].Content[0].Transcript; got != "Hello" {
		t.Fatalf("expected streamed transcript, got %q", got)
	}
	if last[0].Raw == nil {
		t.Fatalf("expected raw backend record to be kept")
	}
}

func TestTurnSignals(t *testing.T) {
	server := newFakeServer(t)
	rec := newRecorder()
	handle, err := NewClient(WithBaseURL(server.server.URL)).Open(context.Background(), "secret", rec.options()...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer handle.Close()
	conn := server.accept()
	readEvent(t, conn)

	for _, event := range []string{
		`{"type":"input_audio_buffer.speech_started"}`,
		`{"type":"response.created","response":{"id":"resp_1"}}`,
		`{"type":"response.audio.delta","delta":"AAA="}`,
		`{"type":"response.audio.delta","delta":"AAA="}`,
		`{"type":"response.done","response":{"id":"resp_1"}}`,
	} {
		writeEvent(t, conn, event)
	}
	rec.wait(t, 5)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	expected := []string{"user_audio", "agent_start", "audio_start", "audio_end", "agent_end"}
	if strings.Join(rec.signals, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected signals %v, got %v", expected, rec.signals)
	}
}

func TestRuntimeError(t *testing.T) {
	server := newFakeServer(t)
	rec := newRecorder()
	handle, err := NewClient(WithBaseURL(server.server.URL)).Open(context.Background(), "secret", rec.options()...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer handle.Close()
	conn := server.accept()
	readEvent(t, conn)

	writeEvent(t, conn, `{"type":"error","error":{"type":"invalid_request_error","message":"bad audio"}}`)
	rec.wait(t, 1)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || rec.errs[0].Error() != "bad audio" {
		t.Fatalf("expected normalized error, got %v", rec.errs)
	}
}

func TestToolCall(t *testing.T) {
	server := newFakeServer(t)
	called := make(chan string, 1)
	tool := realtime.Tool{
		Name: "perform_action",
		Call: func(_ context.Context, arguments string) (string, error) {
			called <- arguments
			return "done", nil
		},
	}
	handle, err := NewClient(WithBaseURL(server.server.URL)).Open(context.Background(), "secret", realtime.WithTools(tool))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer handle.Close()
	conn := server.accept()
	readEvent(t, conn)

	writeEvent(t, conn, `{"type":"response.function_call_arguments.done","call_id":"call_1","name":"perform_action","arguments":"{\"outputText\":\"hi\"}"}`)

	select {
	case arguments := <-called:
		if arguments != `{"outputText":"hi"}` {
			t.Fatalf("unexpected arguments %q", arguments)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected tool to be called")
	}

	output := readEvent(t, conn)
	item := output["item"].(map[string]any)
	if item["type"] != "function_call_output" || item["call_id"] != "call_1" || item["output"] != "done" {
		t.Fatalf("unexpected tool output %v", output)
	}
	if response := readEvent(t, conn); response["type"] != "response.create" {
		t.Fatalf("expected response.create after tool output, got %v", response["type"])
	}
}

func TestCreateClientSecret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/sessions" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != defaultModel {
			t.Errorf("expected default model, got %q", body["model"])
		}
		_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_123","expires_at":1700000000}}`))
	}))
	defer server.Close()

	secret, err := NewClient(WithBaseURL(server.URL)).CreateClientSecret(context.Background(), "key", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if secret.Value != "ek_123" || secret.ExpiresAt != 1700000000 {
		t.Fatalf("unexpected secret %+v", secret)
	}
}

func TestMergeItemKeepsStreamedContent(t *testing.T) {
	transcript := "partial"
	existing := realtime.Item{ID: "item_1", Content: []realtime.ItemContent{{Type: realtime.ContentTypeAudio, Transcript: &transcript}}}
	update := realtime.Item{ID: "item_1", Status: "completed", Content: []realtime.ItemContent{{Type: realtime.ContentTypeAudio}}}

	merged := mergeItem(existing, update)
	if merged.Status != "completed" {
		t.Fatalf("expected update fields to win, got %q", merged.Status)
	}
	if merged.Content[0].Transcript == nil || *merged.Content[0].Transcript != "partial" {
		t.Fatalf("expected streamed transcript to be kept")
	}
}
