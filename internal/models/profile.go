package models

import (
	"strings"
	"time"
)

type PatientProfile struct {
	UserID       string    `bson:"_id" json:"userId"`
	Name         string    `bson:"name" json:"name"`
	Age          *int      `bson:"age,omitempty" json:"age,omitempty"`
	Gender       string    `bson:"gender,omitempty" json:"gender,omitempty"`
	ContactEmail string    `bson:"contactEmail" json:"contactEmail"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Complete is the booking precondition: a non-blank name.
func (p *PatientProfile) Complete() bool {
	return p != nil && strings.TrimSpace(p.Name) != ""
}

// Report is a recorded skin-image prediction owned by a patient.
type Report struct {
	ID         string    `bson:"_id" json:"id"`
	PatientID  string    `bson:"patientId" json:"patientId"`
	Disease    string    `bson:"disease" json:"disease"`
	Confidence float64   `bson:"confidence" json:"confidence"`
	ImageURL   string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	BodyPart   string    `bson:"bodyPart,omitempty" json:"bodyPart,omitempty"`
	Symptoms   string    `bson:"symptoms,omitempty" json:"symptoms,omitempty"`
	Duration   string    `bson:"duration,omitempty" json:"duration,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
}

type Doctor struct {
	ID             string  `bson:"_id" json:"id"` // the doctor's user id
	Name           string  `bson:"name" json:"name"`
	Specialization string  `bson:"specialization" json:"specialization"`
	Education      string  `bson:"education,omitempty" json:"education,omitempty"`
	Hospital       string  `bson:"hospital,omitempty" json:"hospital,omitempty"`
	Location       string  `bson:"location,omitempty" json:"location,omitempty"`
	IsAvailable    bool    `bson:"isAvailable" json:"isAvailable"`
	Rating         float64 `bson:"rating" json:"rating"`
}
