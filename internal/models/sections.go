package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Section string

const (
	SectionSkills         Section = "skills"
	SectionLanguages      Section = "languages"
	SectionExperiences    Section = "experiences"
	SectionEducations     Section = "educations"
	SectionCertifications Section = "certifications"
	SectionAchievements   Section = "achievements"
	SectionReferences     Section = "references"
	SectionSocialNetworks Section = "social_networks"
	SectionCompetences    Section = "competences"
	SectionSoftSkills     Section = "soft_skills"
)

// Sections lists every child collection in rendering order.
var Sections = []Section{
	SectionExperiences,
	SectionEducations,
	SectionSkills,
	SectionLanguages,
	SectionCertifications,
	SectionAchievements,
	SectionCompetences,
	SectionSoftSkills,
	SectionSocialNetworks,
	SectionReferences,
}

func (s Section) Valid() bool {
	for _, v := range Sections {
		if v == s {
			return true
		}
	}
	return false
}

const MaxSocialNetworks = 5

// SectionItem is implemented by every child record of a CV.
type SectionItem interface {
	GetID() string
	GetCVID() string
	Assign(id, cvID string)
	GetPosition() int
	SetPosition(p int)
	IsSelected() bool
	SetSelected(v bool)
	Sanitize(clean func(string) string)
}

// ItemBase carries the columns shared by all child records.
type ItemBase struct {
	ID       string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CVID     string `gorm:"column:cv_id;type:uuid;index;not null" json:"cv_id"`
	Position int    `gorm:"column:position;not null" json:"position"`
	Selected bool   `gorm:"column:selected;not null" json:"selected"`
}

func (b *ItemBase) GetID() string   { return b.ID }
func (b *ItemBase) GetCVID() string { return b.CVID }

func (b *ItemBase) Assign(id, cvID string) {
	b.ID = id
	b.CVID = cvID
}

func (b *ItemBase) GetPosition() int   { return b.Position }
func (b *ItemBase) SetPosition(p int)  { b.Position = p }
func (b *ItemBase) IsSelected() bool   { return b.Selected }
func (b *ItemBase) SetSelected(v bool) { b.Selected = v }

func (b *ItemBase) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type Skill struct {
	ItemBase
	Name  string `gorm:"column:name;type:text" json:"name" validate:"required,max=100"`
	Level int    `gorm:"column:level" json:"level" validate:"min=0,max=5"`
}

func (Skill) TableName() string { return "cv_skills" }

func (s *Skill) Sanitize(clean func(string) string) { s.Name = clean(s.Name) }

type Language struct {
	ItemBase
	Name  string `gorm:"column:name;type:text" json:"name" validate:"required,max=60"`
	Level string `gorm:"column:level;type:varchar(16)" json:"level" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2 native"`
}

func (Language) TableName() string { return "cv_languages" }

func (l *Language) Sanitize(clean func(string) string) { l.Name = clean(l.Name) }

type Experience struct {
	ItemBase
	JobTitle    string         `gorm:"column:job_title;type:text" json:"job_title" validate:"required,max=160"`
	Company     string         `gorm:"column:company;type:text" json:"company" validate:"max=160"`
	Location    string         `gorm:"column:location;type:text" json:"location" validate:"max=120"`
	StartDate   string         `gorm:"column:start_date;type:text" json:"start_date" validate:"omitempty,date_or_present"`
	EndDate     string         `gorm:"column:end_date;type:text" json:"end_date" validate:"omitempty,date_or_present"`
	Description string         `gorm:"column:description;type:text" json:"description" validate:"max=4000"`
	Tasks       pq.StringArray `gorm:"column:tasks;type:text[]" json:"tasks" validate:"max=20,dive,max=300"`
}

func (Experience) TableName() string { return "cv_experiences" }

func (e *Experience) Sanitize(clean func(string) string) {
	e.JobTitle = clean(e.JobTitle)
	e.Company = clean(e.Company)
	e.Location = clean(e.Location)
	e.Description = clean(e.Description)
	for i := range e.Tasks {
		e.Tasks[i] = clean(e.Tasks[i])
	}
}

type Education struct {
	ItemBase
	Degree      string         `gorm:"column:degree;type:text" json:"degree" validate:"required,max=160"`
	School      string         `gorm:"column:school;type:text" json:"school" validate:"max=160"`
	Location    string         `gorm:"column:location;type:text" json:"location" validate:"max=120"`
	StartDate   string         `gorm:"column:start_date;type:text" json:"start_date" validate:"omitempty,date_or_present"`
	EndDate     string         `gorm:"column:end_date;type:text" json:"end_date" validate:"omitempty,date_or_present"`
	Description string         `gorm:"column:description;type:text" json:"description" validate:"max=4000"`
	Courses     pq.StringArray `gorm:"column:courses;type:text[]" json:"courses" validate:"max=30,dive,max=200"`
}

func (Education) TableName() string { return "cv_educations" }

func (e *Education) Sanitize(clean func(string) string) {
	e.Degree = clean(e.Degree)
	e.School = clean(e.School)
	e.Location = clean(e.Location)
	e.Description = clean(e.Description)
	for i := range e.Courses {
		e.Courses[i] = clean(e.Courses[i])
	}
}

type Certification struct {
	ItemBase
	Name     string `gorm:"column:name;type:text" json:"name" validate:"required,max=160"`
	Issuer   string `gorm:"column:issuer;type:text" json:"issuer" validate:"max=160"`
	IssuedAt string `gorm:"column:issued_at;type:text" json:"issued_at" validate:"omitempty,date_or_present"`
	URL      string `gorm:"column:url;type:text" json:"url" validate:"omitempty,url,max=500"`
}

func (Certification) TableName() string { return "cv_certifications" }

func (c *Certification) Sanitize(clean func(string) string) {
	c.Name = clean(c.Name)
	c.Issuer = clean(c.Issuer)
}

type Achievement struct {
	ItemBase
	Title       string `gorm:"column:title;type:text" json:"title" validate:"required,max=160"`
	Description string `gorm:"column:description;type:text" json:"description" validate:"max=2000"`
	Date        string `gorm:"column:date;type:text" json:"date" validate:"omitempty,date_or_present"`
}

func (Achievement) TableName() string { return "cv_achievements" }

func (a *Achievement) Sanitize(clean func(string) string) {
	a.Title = clean(a.Title)
	a.Description = clean(a.Description)
}

type Reference struct {
	ItemBase
	Name          string `gorm:"column:name;type:text" json:"name" validate:"required,max=120"`
	PositionTitle string `gorm:"column:position_title;type:text" json:"position_title" validate:"max=120"`
	Company       string `gorm:"column:company;type:text" json:"company" validate:"max=160"`
	Email         string `gorm:"column:email;type:text" json:"email" validate:"omitempty,email,max=254"`
	Phone         string `gorm:"column:phone;type:text" json:"phone" validate:"max=40"`
}

func (Reference) TableName() string { return "cv_references" }

func (r *Reference) Sanitize(clean func(string) string) {
	r.Name = clean(r.Name)
	r.PositionTitle = clean(r.PositionTitle)
	r.Company = clean(r.Company)
	r.Phone = clean(r.Phone)
}

type SocialNetwork struct {
	ItemBase
	Platform string `gorm:"column:platform;type:varchar(32)" json:"platform" validate:"required,max=32"`
	Handle   string `gorm:"column:handle;type:text" json:"handle" validate:"max=100"`
	URL      string `gorm:"column:url;type:text" json:"url" validate:"omitempty,url,max=500"`
}

func (SocialNetwork) TableName() string { return "cv_social_networks" }

func (s *SocialNetwork) Sanitize(clean func(string) string) {
	s.Platform = clean(s.Platform)
	s.Handle = clean(s.Handle)
}

type Competence struct {
	ItemBase
	Name string `gorm:"column:name;type:text" json:"name" validate:"required,max=120"`
}

func (Competence) TableName() string { return "cv_competences" }

func (c *Competence) Sanitize(clean func(string) string) { c.Name = clean(c.Name) }

type SoftSkill struct {
	ItemBase
	Name string `gorm:"column:name;type:text" json:"name" validate:"required,max=120"`
}

func (SoftSkill) TableName() string { return "cv_soft_skills" }

func (s *SoftSkill) Sanitize(clean func(string) string) { s.Name = clean(s.Name) }

// AllModels is the AutoMigrate set for the relational store.
func AllModels() []any {
	return []any{
		&User{},
		&VerificationToken{},
		&CV{},
		&Skill{},
		&Language{},
		&Experience{},
		&Education{},
		&Certification{},
		&Achievement{},
		&Reference{},
		&SocialNetwork{},
		&Competence{},
		&SoftSkill{},
		&Export{},
	}
}
