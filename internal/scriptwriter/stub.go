package scriptwriter

import (
	"context"
	"fmt"

	"sketchy/internal/domain"
)

// StubWriter returns a placeholder script. It keeps the whole pipeline
// exercisable without an LLM backend configured.
type StubWriter struct{}

func (StubWriter) WriteScript(ctx context.Context, req Request) (*domain.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	panels := make([]domain.ScriptPanel, 0, req.Panels)
	for i := 1; i <= req.Panels; i++ {
		character := "politician"
		if i == 1 {
			character = "anchor"
		}
		panels = append(panels, domain.ScriptPanel{
			Panel:       i,
			Character:   character,
			ScenePrompt: fmt.Sprintf("News anchor caricature at desk with BREAKING NEWS graphic, panel %d, %s", i, req.Style),
			Dialogue:    fmt.Sprintf("Panel %d: This is a placeholder, connect a real LLM backend to generate actual satire!", i),
		})
	}
	title := req.Title
	if title == "" {
		title = "Stub Comic"
	}
	article := req.ArticleText
	if len(article) > 3000 {
		article = article[:3000]
	}
	category := req.Category
	if category == "" {
		category = "WTF News"
	}
	return &domain.Script{
		Title:           title,
		Slug:            "stub-comic",
		Source:          "StubWriter",
		SourceURL:       req.ArticleURL,
		Context:         "This is a stub script. Set SCRIPT_WRITER and OPENAI_API_KEY to enable real generation.",
		OriginalArticle: article,
		Category:        category,
		Panels:          panels,
	}, nil
}

// PromptOnlyWriter returns the prompts that would be sent to an LLM instead
// of a renderable script. Jobs using it complete immediately with the prompt
// payload as their result.
type PromptOnlyWriter struct{}

func (PromptOnlyWriter) WriteScript(ctx context.Context, req Request) (*domain.Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.Script{
		PromptOnly:   true,
		SystemPrompt: BuildSystemPrompt(req.Style),
		UserPrompt:   BuildUserPrompt(req),
	}, nil
}
