package cvstate

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

type itemPtr[T any] interface {
	*T
	models.SectionItem
}

// sectionOps is the set of operations the reducer performs on one child
// collection, independent of the item type.
type sectionOps interface {
	add(r *Reducer, cvID string, raw json.RawMessage) (string, error)
	update(r *Reducer, id string, raw json.RawMessage) error
	remove(id string) error
	setSelected(id string, v *bool) error
	selectAll(v bool)
	reorder(order []string) error
	normalize()
	reassign(cvID string, newID func() string)
	payloads() ([]json.RawMessage, error)
}

type section[T any, P itemPtr[T]] struct {
	name  models.Section
	items *[]T
	limit int
}

func (s section[T, P]) find(id string) int {
	for i := range *s.items {
		if P(&(*s.items)[i]).GetID() == id {
			return i
		}
	}
	return -1
}

func (s section[T, P]) check(r *Reducer, p P) error {
	p.Sanitize(r.clean)
	if err := validation.Struct(p); err != nil {
		return &InvalidItemError{Section: s.name, Err: err}
	}
	return nil
}

func (s section[T, P]) add(r *Reducer, cvID string, raw json.RawMessage) (string, error) {
	if s.limit > 0 && len(*s.items) >= s.limit {
		return "", fmt.Errorf("%w: %s allows at most %d items", ErrLimitReached, s.name, s.limit)
	}
	var item T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &item); err != nil {
			return "", fmt.Errorf("%w: %s payload: %v", ErrInvalidAction, s.name, err)
		}
	}
	p := P(&item)
	p.Assign(r.newID(), cvID)
	p.SetSelected(selectedOrDefault(raw, true))
	if err := s.check(r, p); err != nil {
		return "", err
	}
	*s.items = append(*s.items, item)
	s.renumber()
	return p.GetID(), nil
}

func (s section[T, P]) update(r *Reducer, id string, raw json.RawMessage) error {
	idx := s.find(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s/%s", ErrItemNotFound, s.name, id)
	}
	item := (*s.items)[idx]
	p := P(&item)
	cvID, pos, sel := p.GetCVID(), p.GetPosition(), p.IsSelected()

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidAction, s.name, err)
		}
	}
	// identity and ordering are owned by the reducer, not the payload
	p.Assign(id, cvID)
	p.SetPosition(pos)
	p.SetSelected(selectedOrDefault(raw, sel))

	if err := s.check(r, p); err != nil {
		return err
	}
	(*s.items)[idx] = item
	return nil
}

func (s section[T, P]) remove(id string) error {
	idx := s.find(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s/%s", ErrItemNotFound, s.name, id)
	}
	*s.items = slices.Delete(*s.items, idx, idx+1)
	s.renumber()
	return nil
}

func (s section[T, P]) setSelected(id string, v *bool) error {
	idx := s.find(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s/%s", ErrItemNotFound, s.name, id)
	}
	p := P(&(*s.items)[idx])
	if v == nil {
		p.SetSelected(!p.IsSelected())
		return nil
	}
	p.SetSelected(*v)
	return nil
}

func (s section[T, P]) selectAll(v bool) {
	for i := range *s.items {
		P(&(*s.items)[i]).SetSelected(v)
	}
}

func (s section[T, P]) reorder(order []string) error {
	if len(order) != len(*s.items) {
		return fmt.Errorf("%w: reorder of %s needs %d ids, got %d", ErrInvalidAction, s.name, len(*s.items), len(order))
	}
	seen := make(map[string]struct{}, len(order))
	next := make([]T, 0, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %s in reorder", ErrInvalidAction, id)
		}
		seen[id] = struct{}{}
		idx := s.find(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s/%s", ErrItemNotFound, s.name, id)
		}
		next = append(next, (*s.items)[idx])
	}
	*s.items = next
	s.renumber()
	return nil
}

func (s section[T, P]) normalize() {
	sortByPosition[T, P](*s.items)
	s.renumber()
}

func (s section[T, P]) reassign(cvID string, newID func() string) {
	for i := range *s.items {
		P(&(*s.items)[i]).Assign(newID(), cvID)
	}
}

func (s section[T, P]) payloads() ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(*s.items))
	for i := range *s.items {
		b, err := json.Marshal(&(*s.items)[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s section[T, P]) renumber() {
	for i := range *s.items {
		P(&(*s.items)[i]).SetPosition(i)
	}
}

// selectedOrDefault reads an explicit "selected" from the payload.
func selectedOrDefault(raw json.RawMessage, def bool) bool {
	if len(raw) == 0 {
		return def
	}
	var flag struct {
		Selected *bool `json:"selected"`
	}
	if err := json.Unmarshal(raw, &flag); err != nil || flag.Selected == nil {
		return def
	}
	return *flag.Selected
}

// sectionOf binds the named collection of cv to its generic operations.
func sectionOf(cv *models.CV, name models.Section) (sectionOps, error) {
	switch name {
	case models.SectionSkills:
		return section[models.Skill, *models.Skill]{name: name, items: &cv.Skills}, nil
	case models.SectionLanguages:
		return section[models.Language, *models.Language]{name: name, items: &cv.Languages}, nil
	case models.SectionExperiences:
		return section[models.Experience, *models.Experience]{name: name, items: &cv.Experiences}, nil
	case models.SectionEducations:
		return section[models.Education, *models.Education]{name: name, items: &cv.Educations}, nil
	case models.SectionCertifications:
		return section[models.Certification, *models.Certification]{name: name, items: &cv.Certifications}, nil
	case models.SectionAchievements:
		return section[models.Achievement, *models.Achievement]{name: name, items: &cv.Achievements}, nil
	case models.SectionReferences:
		return section[models.Reference, *models.Reference]{name: name, items: &cv.References}, nil
	case models.SectionSocialNetworks:
		return section[models.SocialNetwork, *models.SocialNetwork]{name: name, items: &cv.SocialNetworks, limit: models.MaxSocialNetworks}, nil
	case models.SectionCompetences:
		return section[models.Competence, *models.Competence]{name: name, items: &cv.Competences}, nil
	case models.SectionSoftSkills:
		return section[models.SoftSkill, *models.SoftSkill]{name: name, items: &cv.SoftSkills}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
}
