package orchestrator

import (
	"context"
)

// Region is a rectangular screen area configured by the operator.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is an on-screen click target.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Regions holds the configured capture areas. Nil means unconfigured.
type Regions struct {
	Chat        *Region
	Input       *Region
	Amount      *Region
	CloseButton *Region
}

// Template names for the Locator. The backing implementation maps
// them to whatever matching assets it uses.
const (
	TemplateAcceptTile  = "accept_partnership_tile"
	TemplateCloseButton = "close_partnership_btn"
	TemplateStopAction  = "stop_action_btn"
	TemplateCleanup     = "cleanup_btn"
	TemplateOutfitReset = "outfit_reset_btn"
	TemplateClothesAsk  = "clothes_request_tile"
	TemplateGiftTile    = "gift_accept_tile"
)

// Capture reads screen content.
type Capture interface {
	// CaptureText runs OCR over a region with the given language pack.
	CaptureText(ctx context.Context, region Region, language string) (string, error)
	// CaptureAmount reads a numeric value from a region.
	CaptureAmount(ctx context.Context, region Region) (int, error)
}

// Locator finds a template on screen. A nil region searches the whole
// screen. found=false with nil error is the normal miss case.
type Locator interface {
	Locate(ctx context.Context, template string, region *Region, confidence float64) (Point, bool, error)
}

// Dispatcher performs input actions in the game window.
type Dispatcher interface {
	Click(ctx context.Context, p Point) error
	// TypeAndSend types text into the input field and submits it.
	TypeAndSend(ctx context.Context, text string) error
	// Type types without submitting, used by the idle filler.
	Type(ctx context.Context, text string) error
	// EraseInput clears the input field.
	EraseInput(ctx context.Context) error
}

// ReplyGenerator is the LLM collaborator.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, prompt, systemPrompt, manifest string) (string, error)
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Translator converts between the active language and English.
type Translator interface {
	ToEnglish(ctx context.Context, text, sourceLang string) string
	FromEnglish(ctx context.Context, text, targetLang string) string
}

// Retriever supplies optional retrieval context for the prompt.
type Retriever interface {
	Context(ctx context.Context, query string) (string, error)
}

// Settings persists operator-visible state between runs.
type Settings interface {
	SetActiveLanguage(lang string) error
	SetTranslationEnabled(enabled bool) error
	Nicks(list string) ([]string, error)
	AddNick(nick, list string) error
	RemoveNick(nick, list string) error
}
