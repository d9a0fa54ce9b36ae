// Package cvstate holds the CV aggregate reducer: an enumerable set of
// actions applied to a copy of a CV. The reducer never touches storage;
// callers persist the returned aggregate.
package cvstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

type ActionType string

const (
	ActionUpdatePersonal ActionType = "update_personal"
	ActionRename         ActionType = "rename"
	ActionSetTemplate    ActionType = "set_template"
	ActionSetTheme       ActionType = "set_theme"
	ActionAddItem        ActionType = "add_item"
	ActionUpdateItem     ActionType = "update_item"
	ActionRemoveItem     ActionType = "remove_item"
	ActionToggleSelected ActionType = "toggle_selected"
	ActionSetSelected    ActionType = "set_selected"
	ActionSelectAll      ActionType = "select_all"
	ActionReorder        ActionType = "reorder"
)

// Action is one mutation of the aggregate. Which fields are read depends on Type.
type Action struct {
	Type     ActionType      `json:"type" binding:"required"`
	Section  models.Section  `json:"section,omitempty"`
	ItemID   string          `json:"item_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Order    []string        `json:"order,omitempty"`
	Selected *bool           `json:"selected,omitempty"`
	Value    string          `json:"value,omitempty"`
}

var (
	ErrInvalidAction  = errors.New("invalid action")
	ErrUnknownSection = errors.New("unknown section")
	ErrItemNotFound   = errors.New("item not found")
	ErrLimitReached   = errors.New("section limit reached")
)

// InvalidItemError wraps validation failures of a section item or of the CV itself.
type InvalidItemError struct {
	Section models.Section
	Err     error
}

func (e *InvalidItemError) Error() string {
	if e.Section == "" {
		return "invalid cv: " + e.Err.Error()
	}
	return fmt.Sprintf("invalid %s item: %v", e.Section, e.Err)
}

func (e *InvalidItemError) Unwrap() error { return e.Err }

// Result reports what an applied batch produced.
type Result struct {
	CV *models.CV `json:"cv"`
	// CreatedIDs holds the ids assigned by add_item actions, in action order.
	CreatedIDs []string `json:"created_ids,omitempty"`
}

type Reducer struct {
	clean func(string) string
	newID func() string
}

type Option func(*Reducer)

// WithIDFunc replaces the id generator used for new items.
func WithIDFunc(fn func() string) Option {
	return func(r *Reducer) { r.newID = fn }
}

func NewReducer(s *validation.Sanitizer, opts ...Option) *Reducer {
	r := &Reducer{clean: s.Clean, newID: uuid.NewString}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reduce applies a single action to a copy of cv.
func (r *Reducer) Reduce(cv *models.CV, a Action) (*models.CV, error) {
	res, err := r.ReduceAll(cv, []Action{a})
	if err != nil {
		return nil, err
	}
	return res.CV, nil
}

// ReduceAll applies actions in order. On error nothing is returned and cv is untouched.
func (r *Reducer) ReduceAll(cv *models.CV, actions []Action) (*Result, error) {
	if cv == nil {
		return nil, fmt.Errorf("%w: nil cv", ErrInvalidAction)
	}
	work := Clone(cv)
	res := &Result{CV: work}
	for i, a := range actions {
		id, err := r.apply(work, a)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, a.Type, err)
		}
		if id != "" {
			res.CreatedIDs = append(res.CreatedIDs, id)
		}
	}
	return res, nil
}

func (r *Reducer) apply(cv *models.CV, a Action) (string, error) {
	switch a.Type {
	case ActionUpdatePersonal:
		return "", r.updatePersonal(cv, a.Payload)
	case ActionRename:
		name := r.clean(a.Value)
		if name == "" || len(name) > 120 {
			return "", fmt.Errorf("%w: name must be 1-120 characters", ErrInvalidAction)
		}
		cv.Name = name
		return "", nil
	case ActionSetTemplate:
		if a.Value != models.TemplateClassic && a.Value != models.TemplateModern {
			return "", fmt.Errorf("%w: unknown template %q", ErrInvalidAction, a.Value)
		}
		cv.Template = a.Value
		return "", nil
	case ActionSetTheme:
		return "", r.setTheme(cv, a.Payload)
	}

	ops, err := sectionOf(cv, a.Section)
	if err != nil {
		return "", err
	}
	switch a.Type {
	case ActionAddItem:
		return ops.add(r, cv.ID, a.Payload)
	case ActionUpdateItem:
		return "", ops.update(r, a.ItemID, a.Payload)
	case ActionRemoveItem:
		return "", ops.remove(a.ItemID)
	case ActionToggleSelected:
		return "", ops.setSelected(a.ItemID, nil)
	case ActionSetSelected:
		if a.Selected == nil {
			return "", fmt.Errorf("%w: selected is required", ErrInvalidAction)
		}
		return "", ops.setSelected(a.ItemID, a.Selected)
	case ActionSelectAll:
		v := true
		if a.Selected != nil {
			v = *a.Selected
		}
		ops.selectAll(v)
		return "", nil
	case ActionReorder:
		return "", ops.reorder(a.Order)
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
}

// PersonalInfo is the patch accepted by update_personal; nil fields are kept.
type PersonalInfo struct {
	JobTitle   *string `json:"job_title"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
	BirthDate  *string `json:"birth_date"`
	Website    *string `json:"website"`
	PhotoURL   *string `json:"photo_url"`
	Summary    *string `json:"summary"`
}

func (r *Reducer) updatePersonal(cv *models.CV, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", ErrInvalidAction)
	}
	var p PersonalInfo
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: personal payload: %v", ErrInvalidAction, err)
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = r.clean(*v)
		}
	}
	set(&cv.JobTitle, p.JobTitle)
	set(&cv.FirstName, p.FirstName)
	set(&cv.LastName, p.LastName)
	set(&cv.Email, p.Email)
	set(&cv.Phone, p.Phone)
	set(&cv.Address, p.Address)
	set(&cv.City, p.City)
	set(&cv.PostalCode, p.PostalCode)
	set(&cv.Country, p.Country)
	set(&cv.BirthDate, p.BirthDate)
	set(&cv.Website, p.Website)
	set(&cv.PhotoURL, p.PhotoURL)
	set(&cv.Summary, p.Summary)
	cv.Email = strings.ToLower(cv.Email)

	if err := validation.Struct(cv); err != nil {
		return &InvalidItemError{Err: err}
	}
	return nil
}

func (r *Reducer) setTheme(cv *models.CV, raw json.RawMessage) error {
	var t models.Theme
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("%w: theme payload: %v", ErrInvalidAction, err)
		}
	}
	t.FontFamily = r.clean(t.FontFamily)
	if err := validation.Struct(t); err != nil {
		return &InvalidItemError{Err: err}
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	cv.Theme = datatypes.JSON(b)
	return nil
}
