package models

const (
	// SelectionChunkID identifies the synthetic chunk carrying user-selected
	// text in selected-text Q&A mode.
	SelectionChunkID = "selected-text"

	// SelectionSourcePath marks selection-only context in citations and logs.
	SelectionSourcePath = "selection"

	// DefaultFallbackMessage is returned verbatim when nothing relevant was
	// retrieved or the generated answer failed validation.
	DefaultFallbackMessage = "This information is not available in the book."
)
