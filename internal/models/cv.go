package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TemplateClassic = "classic"
	TemplateModern  = "modern"
)

// CV is the aggregate root: one résumé version with its owned collections.
type CV struct {
	ID       string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID   string         `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	Name     string         `gorm:"column:name;type:text" json:"name" validate:"max=120"`
	Template string         `gorm:"column:template;type:varchar(32)" json:"template" validate:"omitempty,oneof=classic modern"`
	Theme    datatypes.JSON `gorm:"column:theme;type:jsonb" json:"theme,omitempty"`

	JobTitle   string `gorm:"column:job_title;type:text" json:"job_title" validate:"max=160"`
	FirstName  string `gorm:"column:first_name;type:text" json:"first_name" validate:"max=100"`
	LastName   string `gorm:"column:last_name;type:text" json:"last_name" validate:"max=100"`
	Email      string `gorm:"column:email;type:text" json:"email" validate:"omitempty,email,max=254"`
	Phone      string `gorm:"column:phone;type:text" json:"phone" validate:"max=40"`
	Address    string `gorm:"column:address;type:text" json:"address" validate:"max=200"`
	City       string `gorm:"column:city;type:text" json:"city" validate:"max=100"`
	PostalCode string `gorm:"column:postal_code;type:text" json:"postal_code" validate:"max=20"`
	Country    string `gorm:"column:country;type:text" json:"country" validate:"max=100"`
	BirthDate  string `gorm:"column:birth_date;type:text" json:"birth_date" validate:"omitempty,date_or_present"`
	Website    string `gorm:"column:website;type:text" json:"website" validate:"omitempty,url,max=300"`
	PhotoURL   string `gorm:"column:photo_url;type:text" json:"photo_url" validate:"omitempty,url,max=500"`
	Summary    string `gorm:"column:summary;type:text" json:"summary" validate:"max=4000"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;index" json:"updated_at"`

	Skills         []Skill         `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"skills"`
	Languages      []Language      `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"languages"`
	Experiences    []Experience    `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"experiences"`
	Educations     []Education     `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"educations"`
	Certifications []Certification `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"certifications"`
	Achievements   []Achievement   `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"achievements"`
	References     []Reference     `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"references"`
	SocialNetworks []SocialNetwork `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"social_networks"`
	Competences    []Competence    `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"competences"`
	SoftSkills     []SoftSkill     `gorm:"foreignKey:CVID;constraint:OnDelete:CASCADE" json:"soft_skills"`
}

func (CV) TableName() string { return "cvs" }

func (c *CV) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Template == "" {
		c.Template = TemplateClassic
	}
	return nil
}

func (c *CV) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// Theme holds the presentation settings stored in CV.Theme.
type Theme struct {
	PrimaryColor string `json:"primary_color,omitempty" validate:"omitempty,hexcolor"`
	FontFamily   string `json:"font_family,omitempty" validate:"omitempty,max=64"`
	ShowPhoto    bool   `json:"show_photo,omitempty"`
}

// ParsedTheme decodes CV.Theme, falling back to defaults on empty or corrupt data.
func (c *CV) ParsedTheme() Theme {
	t := Theme{PrimaryColor: "#1f3a5f", FontFamily: "Helvetica, Arial, sans-serif"}
	if len(c.Theme) == 0 {
		return t
	}
	var stored Theme
	if err := json.Unmarshal(c.Theme, &stored); err != nil {
		return t
	}
	if stored.PrimaryColor != "" {
		t.PrimaryColor = stored.PrimaryColor
	}
	if stored.FontFamily != "" {
		t.FontFamily = stored.FontFamily
	}
	t.ShowPhoto = stored.ShowPhoto
	return t
}

// CVSummary is the list view of a CV version.
type CVSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JobTitle  string    `json:"job_title"`
	Template  string    `json:"template"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *CV) Summarize() CVSummary {
	return CVSummary{
		ID:        c.ID,
		Name:      c.Name,
		JobTitle:  c.JobTitle,
		Template:  c.Template,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
