package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/providers/llm"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

const suggestionTimeout = 45 * time.Second

type SuggestionService interface {
	SuggestSummary(ctx context.Context, userID, cvID, language string) (string, error)
}

type suggestionService struct {
	cvs   CVService
	llm   llm.Provider // nil when no provider is configured
	clean *validation.Sanitizer
}

func NewSuggestionService(cvs CVService, provider llm.Provider) SuggestionService {
	return &suggestionService{cvs: cvs, llm: provider, clean: validation.NewSanitizer()}
}

func (s *suggestionService) SuggestSummary(ctx context.Context, userID, cvID, language string) (string, error) {
	const op = "SuggestionService.SuggestSummary"

	if s.llm == nil {
		return "", utils.E(utils.CodeUnavailable, op, "suggestions are not configured", nil)
	}
	cv, err := s.cvs.Get(ctx, userID, cvID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, suggestionTimeout)
	defer cancel()

	chunks, errs := s.llm.StreamAnswer(ctx, SummaryPrompt(cvstate.Selected(cv), language))
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	if err := <-errs; err != nil {
		if ctx.Err() != nil {
			return "", utils.E(utils.CodeTimeout, op, "suggestion timed out", err)
		}
		return "", utils.E(utils.CodeUnavailable, op, "suggestion failed", err)
	}

	out := s.clean.Clean(b.String())
	if out == "" {
		return "", utils.E(utils.CodeUnavailable, op, "empty suggestion", nil)
	}
	return out, nil
}

// SummaryPrompt describes the selected content of a CV for the model.
func SummaryPrompt(cv *models.CV, language string) string {
	if language == "" {
		language = "English"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Write a professional CV summary of 3 to 4 sentences in %s. ", language)
	b.WriteString("Use first person without pronouns, no headings, plain text only.\n\n")
	if cv.JobTitle != "" {
		fmt.Fprintf(&b, "Target role: %s\n", cv.JobTitle)
	}
	if len(cv.Experiences) > 0 {
		b.WriteString("Experience:\n")
		for _, e := range cv.Experiences {
			fmt.Fprintf(&b, "- %s at %s (%s to %s)", e.JobTitle, e.Company, e.StartDate, e.EndDate)
			if len(e.Tasks) > 0 {
				fmt.Fprintf(&b, ": %s", strings.Join(e.Tasks, "; "))
			}
			b.WriteString("\n")
		}
	}
	if len(cv.Educations) > 0 {
		b.WriteString("Education:\n")
		for _, e := range cv.Educations {
			fmt.Fprintf(&b, "- %s, %s\n", e.Degree, e.School)
		}
	}
	if len(cv.Skills) > 0 {
		names := make([]string, 0, len(cv.Skills))
		for _, sk := range cv.Skills {
			names = append(names, sk.Name)
		}
		fmt.Fprintf(&b, "Skills: %s\n", strings.Join(names, ", "))
	}
	if cv.Summary != "" {
		fmt.Fprintf(&b, "Current summary to improve: %s\n", cv.Summary)
	}
	return b.String()
}
