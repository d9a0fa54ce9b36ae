package cvstate

import (
	"encoding/json"
	"fmt"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

// SeedActions returns the actions that rebuild src on an empty CV. Imports
// go through them so imported content is sanitized and validated exactly like
// edits made in the editor.
func SeedActions(src *models.CV) ([]Action, error) {
	work := Clone(src)
	Normalize(work)

	personal, err := json.Marshal(PersonalInfo{
		JobTitle:   &work.JobTitle,
		FirstName:  &work.FirstName,
		LastName:   &work.LastName,
		Email:      &work.Email,
		Phone:      &work.Phone,
		Address:    &work.Address,
		City:       &work.City,
		PostalCode: &work.PostalCode,
		Country:    &work.Country,
		BirthDate:  &work.BirthDate,
		Website:    &work.Website,
		PhotoURL:   &work.PhotoURL,
		Summary:    &work.Summary,
	})
	if err != nil {
		return nil, err
	}

	actions := []Action{{Type: ActionUpdatePersonal, Payload: personal}}
	if work.Template != "" {
		actions = append(actions, Action{Type: ActionSetTemplate, Value: work.Template})
	}
	if len(work.Theme) > 0 && string(work.Theme) != "null" {
		actions = append(actions, Action{Type: ActionSetTheme, Payload: json.RawMessage(work.Theme)})
	}
	for _, name := range models.Sections {
		ops, _ := sectionOf(work, name)
		items, err := ops.payloads()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, raw := range items {
			actions = append(actions, Action{Type: ActionAddItem, Section: name, Payload: raw})
		}
	}
	return actions, nil
}
