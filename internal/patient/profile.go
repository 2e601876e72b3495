// Package patient provides the durable patient directory and resolves raw
// call identities to either a registered patient or an ephemeral key.
package patient

import (
	"context"
	"time"
)

// Vitals is the most recent set of recorded measurements for a patient.
type Vitals struct {
	BloodPressure string `json:"blood_pressure,omitempty"`
	HeartRate     string `json:"heart_rate,omitempty"`
	Temperature   string `json:"temperature,omitempty"`
	SpO2          string `json:"spo2,omitempty"`
	RespRate      string `json:"resp_rate,omitempty"`
}

// Profile is a registered patient's clinical record.
type Profile struct {
	ID                string    `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Age               int       `json:"age"`
	Gender            string    `json:"gender"`
	Diagnosis         string    `json:"diagnosis"`
	Medications       []string  `json:"medications"`
	FollowUpPlan      string    `json:"follow_up_plan"`
	EmergencyContacts []string  `json:"emergency_contacts"`
	Vitals            Vitals    `json:"vitals"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Directory looks up registered patients. Both finders return
// ErrNotFound when no record matches.
type Directory interface {
	FindByID(ctx context.Context, id string) (*Profile, error)
	FindByCode(ctx context.Context, code string) (*Profile, error)
	Close() error
}
