package scriptwriter

import (
	"fmt"
	"strings"

	"sketchy/internal/domain"
)

const maxArticleChars = 4000

const systemPromptTemplate = `You are a satirical cartoonist for SketchyNews. You write comic scripts that transform news articles into biting political satire in the style of MAD Magazine.

Rules:
- Every scene_prompt MUST end with: %s
- Use HUMAN CARICATURES of real people, NO anthropomorphic animals
- Each panel must be a VISUAL GAG, not just someone talking
- Dialogue must be sharp, witty, and at least 5 words per panel
- Build a narrative arc: setup, escalation, punchline
- Include sourceUrl, context, and originalArticle fields
`

// BuildSystemPrompt returns the system prompt with the style suffix applied.
func BuildSystemPrompt(style string) string {
	return fmt.Sprintf(systemPromptTemplate, style)
}

// BuildUserPrompt renders the per-request LLM instruction, including the
// expected JSON response shape.
func BuildUserPrompt(req Request) string {
	langInstruction := ""
	if req.Language == domain.LanguageFR {
		langInstruction = "Write ALL dialogue in French. Title in French."
	}
	category := req.Category
	if category == "" {
		category = "auto-detect"
	}
	articleURL := req.ArticleURL
	if articleURL == "" {
		articleURL = "N/A"
	}
	text := req.ArticleText
	if len(text) > maxArticleChars {
		text = text[:maxArticleChars]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-panel satirical comic script about this article.\n\n", req.Panels)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	fmt.Fprintf(&b, "Style suffix for every prompt: %s\n", req.Style)
	if langInstruction != "" {
		b.WriteString(langInstruction + "\n")
	}
	fmt.Fprintf(&b, "Category: %s\n\n", category)
	fmt.Fprintf(&b, "Article URL: %s\n", articleURL)
	fmt.Fprintf(&b, "Article text:\n%s\n\n", text)
	fmt.Fprintf(&b, `Respond with ONLY valid JSON in this exact format:
{
  "title": "...",
  "slug": "kebab-case-slug",
  "source": "Source Name",
  "sourceUrl": "%s",
  "context": "2-3 sentence summary for readers",
  "originalArticle": "<paste full article text here>",
  "category": "%s",
  "panels": [
    {
      "panel": 1,
      "character": "character_id",
      "scene_prompt": "detailed visual scene description, %s",
      "dialogue": "Sharp witty dialogue (min 5 words)"
    }
  ]
}
`, req.ArticleURL, category, req.Style)
	return b.String()
}
