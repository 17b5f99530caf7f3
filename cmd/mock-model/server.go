package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	openai "github.com/sashabaranov/go-openai"
)

// capturedRequest is one served request, kept for /requests.
type capturedRequest struct {
	Model     string                         `json:"model"`
	Messages  []openai.ChatCompletionMessage `json:"messages"`
	CallIndex int                            `json:"call_index"`
	Timestamp int64                          `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string
	logger   *slog.Logger

	mu       sync.Mutex
	total    int
	calls    map[string]int
	requests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	return &server{
		fixtures: fixtures,
		logger:   logger,
		calls:    make(map[string]int),
		requests: make(map[string][]capturedRequest),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /requests", s.handleRequests)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// next records a call and returns its 1-based index for the model.
func (s *server) next(req openai.ChatCompletionRequest) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.calls[req.Model]++
	n := s.calls[req.Model]
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: n,
		Timestamp: time.Now().UnixMilli(),
	})
	return n
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	seq, ok := s.fixtures[req.Model]
	if !ok {
		s.logger.Warn("No fixture for model", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	n := s.next(req)
	content := seq[min(n, len(seq))-1]
	s.logger.Info("Serving fixture", "model", req.Model, "call", n, "of", len(seq), "messages", len(req.Messages))

	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}

	writeJSON(w, openai.ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:     promptChars / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (promptChars + len(content)) / 4,
		},
	})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := make([]openai.Model, 0, len(s.fixtures))
	for _, name := range sortedKeys(s.fixtures) {
		models = append(models, openai.Model{ID: name, Object: "model", OwnedBy: "mock-model"})
	}
	writeJSON(w, openai.ModelsList{Models: models})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	calls := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		calls[k] = v
	}
	total := s.total
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"total_calls":    total,
		"calls_by_model": calls,
	})
}

// handleRequests returns captured requests, optionally filtered by the
// model and call (1-based) query parameters.
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	call, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	out := make(map[string][]capturedRequest)
	for name, reqs := range s.requests {
		if model != "" && name != model {
			continue
		}
		for _, req := range reqs {
			if call == 0 || req.CallIndex == call {
				out[name] = append(out[name], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": out})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

var numberedFixture = regexp.MustCompile(`^(.+)\.(\d+)\.md$`)

// loadFixtures reads *.md files from dir into model -> answer sequence.
// Numbered files come first in numeric order, followed by the base file.
func loadFixtures(dir string) (map[string][]string, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "*.md")
	if err != nil {
		return nil, fmt.Errorf("scan fixtures: %w", err)
	}

	base := make(map[string]string)
	numbered := make(map[string]map[int]string)
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		file := path.Base(name)
		if m := numberedFixture.FindStringSubmatch(file); m != nil {
			idx, _ := strconv.Atoi(m[2])
			if numbered[m[1]] == nil {
				numbered[m[1]] = make(map[int]string)
			}
			numbered[m[1]][idx] = string(data)
			continue
		}
		base[strings.TrimSuffix(file, ".md")] = string(data)
	}

	fixtures := make(map[string][]string)
	for name, byIndex := range numbered {
		indices := make([]int, 0, len(byIndex))
		for i := range byIndex {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		for _, i := range indices {
			fixtures[name] = append(fixtures[name], byIndex[i])
		}
	}
	for name, content := range base {
		fixtures[name] = append(fixtures[name], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
