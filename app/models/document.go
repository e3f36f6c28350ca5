package models

const (
	DefaultSummaryFocus    = "Key Concepts & Definitions"
	DefaultSummaryLanguage = "English"
)

// SummarizeSettings drives how the summarizer script treats a document.
type SummarizeSettings struct {
	Focus    string `json:"focus"`
	Language string `json:"language"`
}

// ScriptMessage is one JSON line written by a document helper script.
// Exactly one of the fields is set per line.
type ScriptMessage struct {
	Progress *int   `json:"progress,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Text     string `json:"text,omitempty"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error,omitempty"`
}
