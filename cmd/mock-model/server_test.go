package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "gpt-4o.2.md", "second")
	writeFixture(t, dir, "gpt-4o.1.md", "first")
	writeFixture(t, dir, "gpt-4o.md", "fallback")
	writeFixture(t, dir, "llama.md", "only")
	writeFixture(t, dir, "notes.txt", "ignored")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	want := []string{"first", "second", "fallback"}
	got := fixtures["gpt-4o"]
	if len(got) != len(want) {
		t.Fatalf("gpt-4o: expected %d fixtures, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fixture[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(fixtures["llama"]) != 1 {
		t.Errorf("llama: expected 1 fixture, got %d", len(fixtures["llama"]))
	}
	if len(fixtures) != 2 {
		t.Errorf("expected 2 models, got %d", len(fixtures))
	}
}

func TestLoadFixtures_Empty(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Fatal("expected error for empty fixture directory")
	}
}

func newTestServer(t *testing.T, fixtures map[string][]string) (*server, *httptest.Server) {
	t.Helper()
	s := newServer(fixtures, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func chat(t *testing.T, url, model string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hello"}},
	})
	resp, err := http.Post(url+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, ""
	}

	var out openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(out.Choices))
	}
	return resp.StatusCode, out.Choices[0].Message.Content
}

func TestChatCompletions_ServesSequenceThenRepeatsLast(t *testing.T) {
	_, ts := newTestServer(t, map[string][]string{"gpt-4o": {"generate", "review"}})

	for i, want := range []string{"generate", "review", "review"} {
		code, got := chat(t, ts.URL, "gpt-4o")
		if code != http.StatusOK {
			t.Fatalf("call %d: status %d", i+1, code)
		}
		if got != want {
			t.Errorf("call %d: got %q, want %q", i+1, got, want)
		}
	}
}

func TestChatCompletions_UnknownModel(t *testing.T) {
	_, ts := newTestServer(t, map[string][]string{"gpt-4o": {"x"}})

	if code, _ := chat(t, ts.URL, "other"); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestRequests_CapturesPrompts(t *testing.T) {
	s, ts := newTestServer(t, map[string][]string{"a": {"1"}, "b": {"2"}})
	chat(t, ts.URL, "a")
	chat(t, ts.URL, "a")
	chat(t, ts.URL, "b")

	resp, err := http.Get(ts.URL + "/requests?model=a&call=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out struct {
		Requests map[string][]capturedRequest `json:"requests_by_model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Requests) != 1 || len(out.Requests["a"]) != 1 {
		t.Fatalf("unexpected filter result: %+v", out.Requests)
	}
	if got := out.Requests["a"][0]; got.CallIndex != 2 || got.Messages[0].Content != "hello" {
		t.Errorf("unexpected captured request: %+v", got)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total != 3 {
		t.Errorf("expected 3 total calls, got %d", s.total)
	}
}
