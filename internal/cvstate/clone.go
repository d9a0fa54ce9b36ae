package cvstate

import (
	"slices"
	"sort"
	"time"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

// Clone deep-copies the aggregate.
func Clone(cv *models.CV) *models.CV {
	out := *cv
	out.Theme = slices.Clone(cv.Theme)
	out.Skills = slices.Clone(cv.Skills)
	out.Languages = slices.Clone(cv.Languages)
	out.Experiences = slices.Clone(cv.Experiences)
	for i := range out.Experiences {
		out.Experiences[i].Tasks = slices.Clone(out.Experiences[i].Tasks)
	}
	out.Educations = slices.Clone(cv.Educations)
	for i := range out.Educations {
		out.Educations[i].Courses = slices.Clone(out.Educations[i].Courses)
	}
	out.Certifications = slices.Clone(cv.Certifications)
	out.Achievements = slices.Clone(cv.Achievements)
	out.References = slices.Clone(cv.References)
	out.SocialNetworks = slices.Clone(cv.SocialNetworks)
	out.Competences = slices.Clone(cv.Competences)
	out.SoftSkills = slices.Clone(cv.SoftSkills)
	return &out
}

// Normalize sorts every collection by position and renumbers it 0..n-1.
func Normalize(cv *models.CV) {
	for _, name := range models.Sections {
		ops, _ := sectionOf(cv, name)
		ops.normalize()
	}
}

func sortByPosition[T any, P itemPtr[T]](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return P(&items[i]).GetPosition() < P(&items[j]).GetPosition()
	})
}

func keepSelected[T any, P itemPtr[T]](items []T) []T {
	sortByPosition[T, P](items)
	out := items[:0]
	for i := range items {
		if P(&items[i]).IsSelected() {
			out = append(out, items[i])
		}
	}
	return out
}

// Selected returns a copy holding only the items flagged for export.
func Selected(cv *models.CV) *models.CV {
	out := Clone(cv)
	out.Skills = keepSelected[models.Skill](out.Skills)
	out.Languages = keepSelected[models.Language](out.Languages)
	out.Experiences = keepSelected[models.Experience](out.Experiences)
	out.Educations = keepSelected[models.Education](out.Educations)
	out.Certifications = keepSelected[models.Certification](out.Certifications)
	out.Achievements = keepSelected[models.Achievement](out.Achievements)
	out.References = keepSelected[models.Reference](out.References)
	out.SocialNetworks = keepSelected[models.SocialNetwork](out.SocialNetworks)
	out.Competences = keepSelected[models.Competence](out.Competences)
	out.SoftSkills = keepSelected[models.SoftSkill](out.SoftSkills)
	return out
}

// CopyOf builds a new, unsaved version of cv owned by userID with fresh ids.
func CopyOf(cv *models.CV, userID, name string, newID func() string) *models.CV {
	out := Clone(cv)
	out.ID = newID()
	out.UserID = userID
	out.Name = name
	out.CreatedAt, out.UpdatedAt = time.Time{}, time.Time{}
	for _, s := range models.Sections {
		ops, _ := sectionOf(out, s)
		ops.reassign(out.ID, newID)
	}
	return out
}
