package scriptwriter

import (
	"context"
	"fmt"

	"sketchy/internal/domain"
	"sketchy/internal/infra"
)

// Request carries everything a writer needs to produce a script.
type Request struct {
	ArticleText string
	ArticleURL  string
	Title       string
	Panels      int
	Tone        domain.Tone
	Style       string
	Language    domain.Language
	Category    string
}

// Writer produces a comic script from a prepared article. Implementations
// fail by returning an error; the worker maps any failure to job failure.
type Writer interface {
	WriteScript(ctx context.Context, req Request) (*domain.Script, error)
}

// New constructs the writer selected by cfg.ScriptWriter.
func New(cfg *infra.Config) (Writer, error) {
	switch cfg.ScriptWriter {
	case "", "stub":
		return &StubWriter{}, nil
	case "prompt_only":
		return &PromptOnlyWriter{}, nil
	case "openai":
		return NewOpenAIWriter(OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown script writer backend %q", cfg.ScriptWriter)
	}
}
