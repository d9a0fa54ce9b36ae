package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TutorialProgress tracks the onboarding walkthrough for one user.
type TutorialProgress struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID      string             `bson:"user_id" json:"user_id"`
	CurrentStep int                `bson:"current_step" json:"current_step"`
	Completed   []string           `bson:"completed" json:"completed"`
	Skipped     bool               `bson:"skipped" json:"skipped"`

	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

func (p *TutorialProgress) Done() bool { return p.CompletedAt != nil }

// TutorialStep is one entry of the walkthrough definition.
type TutorialStep struct {
	ID     string `yaml:"id" json:"id"`
	Title  string `yaml:"title" json:"title"`
	Body   string `yaml:"body" json:"body"`
	Target string `yaml:"target" json:"target"` // UI anchor the overlay points at
}
