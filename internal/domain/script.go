package domain

// ScriptPanel is one panel of a comic script.
type ScriptPanel struct {
	Panel       int    `json:"panel"`
	Character   string `json:"character"`
	ScenePrompt string `json:"scene_prompt"`
	Dialogue    string `json:"dialogue"`
}

// Script is a complete comic script produced by a script writer. A writer in
// prompt-only mode returns PromptOnly=true with the prompt fields set and no
// panels; such a script short-circuits the pipeline.
type Script struct {
	Title           string        `json:"title,omitempty"`
	Slug            string        `json:"slug,omitempty"`
	Source          string        `json:"source,omitempty"`
	SourceURL       string        `json:"sourceUrl,omitempty"`
	Context         string        `json:"context,omitempty"`
	OriginalArticle string        `json:"originalArticle,omitempty"`
	Category        string        `json:"category,omitempty"`
	Panels          []ScriptPanel `json:"panels,omitempty"`

	PromptOnly   bool   `json:"_prompt_only,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}
