package llm

import "context"

// Provider generates text for the CV writing helpers.
type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental).
	StreamAnswer(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// SummaryInstructions frame every summary request sent to a provider.
const SummaryInstructions = "You write the professional summary section of a CV. " +
	"Answer with two to four sentences of plain text in the requested language. " +
	"Do not use markdown, headings, bullet points or quotes. Do not invent employers, degrees or dates."
