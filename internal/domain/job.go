package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Tone selects the satirical register of a generated script.
type Tone string

const (
	ToneGentle Tone = "gentle"
	ToneSharp  Tone = "sharp"
	ToneSavage Tone = "savage"
	ToneAbsurd Tone = "absurd"
)

// Language enumerates supported script languages.
type Language string

const (
	LanguageEN Language = "en"
	LanguageFR Language = "fr"
)

var languageMatcher = language.NewMatcher([]language.Tag{
	language.English,
	language.French,
})

// NormalizeLanguage maps an arbitrary BCP 47 tag onto a supported language,
// falling back to English.
func NormalizeLanguage(raw string) Language {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LanguageEN
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return LanguageEN
	}
	_, index, _ := languageMatcher.Match(tag)
	if index == 1 {
		return LanguageFR
	}
	return LanguageEN
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	StatusPending          JobStatus = "pending"
	StatusWritingScript    JobStatus = "writing_script"
	StatusGeneratingImages JobStatus = "generating_images"
	StatusAssembling       JobStatus = "assembling"
	StatusCompleted        JobStatus = "completed"
	StatusFailed           JobStatus = "failed"
)

// Terminal reports whether no further transitions can leave the status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const (
	MinPanels     = 4
	MaxPanels     = 18
	DefaultPanels = 18

	// DefaultStyle is the art-style suffix appended to every scene prompt.
	DefaultStyle = "editorial cartoon style, vibrant colors, Mort Drucker MAD Magazine style, bold ink outlines"
)

// ComicRequest is the immutable snapshot of a submitted generation request.
type ComicRequest struct {
	ArticleURL  string   `json:"article_url,omitempty"`
	ArticleText string   `json:"article_text,omitempty"`
	Title       string   `json:"title,omitempty"`
	Panels      int      `json:"panels"`
	Tone        Tone     `json:"tone"`
	Style       string   `json:"style"`
	Language    Language `json:"language"`
	Category    string   `json:"category,omitempty"`
	WebhookURL  string   `json:"webhook_url,omitempty"`
}

// Normalize applies defaults and clamps fields to their allowed ranges. It
// returns ErrInvalidRequest when the request cannot be repaired.
func (r *ComicRequest) Normalize() error {
	if strings.TrimSpace(r.ArticleURL) == "" && strings.TrimSpace(r.ArticleText) == "" {
		return ErrInvalidRequest
	}
	if r.Panels == 0 {
		r.Panels = DefaultPanels
	}
	if r.Panels < MinPanels || r.Panels > MaxPanels {
		return ErrInvalidRequest
	}
	switch r.Tone {
	case "":
		r.Tone = ToneSharp
	case ToneGentle, ToneSharp, ToneSavage, ToneAbsurd:
	default:
		return ErrInvalidRequest
	}
	if strings.TrimSpace(r.Style) == "" {
		r.Style = DefaultStyle
	}
	r.Language = NormalizeLanguage(string(r.Language))
	return nil
}

// PanelInfo describes one finished panel in a completed comic.
type PanelInfo struct {
	Index     int    `json:"index"`
	Character string `json:"character,omitempty"`
	Dialogue  string `json:"dialogue,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// ComicResult is the structured output of a completed job. For prompt-only
// (dry-run) jobs only the prompt fields are populated.
type ComicResult struct {
	Title            string      `json:"title,omitempty"`
	CombinedImageURL string      `json:"combined_image_url,omitempty"`
	Panels           []PanelInfo `json:"panels,omitempty"`

	PromptOnly   bool   `json:"prompt_only,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`
}

// Job is one comic-generation request and its mutable processing record.
type Job struct {
	ID              string
	APIKey          string
	Status          JobStatus
	Request         ComicRequest
	Result          *ComicResult
	Error           string
	Progress        string
	PanelsCompleted int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewJobID returns a fresh opaque job identifier.
func NewJobID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "job_" + hex[:12]
}
