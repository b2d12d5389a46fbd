// ABOUTME: OpenAI-compatible dispatcher streaming one chat completion per provider profile.
// ABOUTME: A circuit breaker guards dispatch; an open breaker is a dispatch failure.

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const eventBufferSize = 16

// Profile configures one translation provider backed by an
// OpenAI-compatible chat completion endpoint.
type Profile struct {
	Name    string
	Model   string
	APIKey  string
	BaseURL string
}

// OpenAIDispatcher fans a request out to one streaming chat completion per
// provider profile and adapts the streams to the Event boundary.
type OpenAIDispatcher struct {
	profiles map[string]Profile
	clients  map[string]*openai.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewOpenAIDispatcher builds a dispatcher for the given profiles. Pass nil
// logger for default.
func NewOpenAIDispatcher(profiles []Profile, logger *slog.Logger) *OpenAIDispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Profile, len(profiles))
	clients := make(map[string]*openai.Client, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p

		cfg := openai.DefaultConfig(p.APIKey)
		if p.BaseURL != "" {
			cfg.BaseURL = p.BaseURL
		}
		clients[p.Name] = openai.NewClientWithConfig(cfg)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "provider-dispatch",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &OpenAIDispatcher{
		profiles: byName,
		clients:  clients,
		breaker:  breaker,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch starts one streaming completion per requested provider. It fails
// up front, with no events emitted, when a provider has no profile or the
// circuit breaker is open. Per-provider failures after dispatch are
// reported as EventError, never as a Dispatch error.
func (d *OpenAIDispatcher) Dispatch(ctx context.Context, req *Request) (<-chan *Event, error) {
	for _, name := range req.Providers {
		if _, ok := d.profiles[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}
	if d.breaker.State() == gobreaker.StateOpen {
		return nil, gobreaker.ErrOpenState
	}

	events := make(chan *Event, eventBufferSize)

	var wg sync.WaitGroup
	wg.Add(len(req.Providers))
	for _, name := range req.Providers {
		go func(name string) {
			defer wg.Done()
			d.streamProvider(ctx, req, name, events)
		}(name)
	}

	go func() {
		wg.Wait()
		events <- &Event{RequestID: req.RequestID, Type: EventAllDone}
		close(events)
	}()

	return events, nil
}

// streamProvider runs one chat completion stream and adapts it to events.
func (d *OpenAIDispatcher) streamProvider(ctx context.Context, req *Request, name string, events chan<- *Event) {
	profile := d.profiles[name]
	client := d.clients[name]

	result, err := d.breaker.Execute(func() (any, error) {
		return client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model: profile.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a translation engine. Respond with the translation only, nothing else.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: translationPrompt(req),
				},
			},
			Stream: true,
		})
	})
	if err != nil {
		d.logger.Warn("provider stream failed to open",
			"provider", name,
			"request_id", req.RequestID,
			"error", err)
		events <- &Event{RequestID: req.RequestID, Provider: name, Type: EventError, Err: err.Error(), Done: true}
		return
	}
	stream := result.(*openai.ChatCompletionStream)
	defer stream.Close()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			events <- &Event{RequestID: req.RequestID, Provider: name, Type: EventError, Err: err.Error(), Done: true}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		events <- &Event{RequestID: req.RequestID, Provider: name, Type: EventPartial, Delta: delta}
	}

	// Final full-replacement update so the accumulated text is authoritative.
	events <- &Event{
		RequestID: req.RequestID,
		Provider:  name,
		Type:      EventReplace,
		Text:      strings.TrimSpace(full.String()),
		Done:      true,
	}
}

func translationPrompt(req *Request) string {
	if req.SourceLang == "" || req.SourceLang == "auto" {
		return fmt.Sprintf("Translate the following text to %s:\n\n%s", req.TargetLang, req.Text)
	}
	return fmt.Sprintf("Translate the following text from %s to %s:\n\n%s", req.SourceLang, req.TargetLang, req.Text)
}
