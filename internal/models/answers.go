package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Rating bounds shared by the overall and acidity ratings.
const (
	MinRating     = 0
	MaxRating     = 10
	DefaultRating = 5
)

// BottleAnswers is the fixed-shape answer record kept per bottle ordinal.
type BottleAnswers struct {
	InitialThoughts    string   `json:"initial_thoughts"`
	Rating             int      `json:"rating"`
	FruitFlavors       []string `json:"fruit_flavors"`
	AcidityRating      int      `json:"acidity_rating"`
	AdditionalThoughts string   `json:"additional_thoughts"`
}

// DefaultBottleAnswers returns the record a bottle starts with.
func DefaultBottleAnswers() BottleAnswers {
	return BottleAnswers{
		Rating:        DefaultRating,
		AcidityRating: DefaultRating,
		FruitFlavors:  []string{},
	}
}

// AnswerPatch carries a partial update to one bottle's answers; nil fields are left alone.
type AnswerPatch struct {
	InitialThoughts    *string   `json:"initial_thoughts,omitempty"`
	Rating             *int      `json:"rating,omitempty"`
	FruitFlavors       *[]string `json:"fruit_flavors,omitempty"`
	AcidityRating      *int      `json:"acidity_rating,omitempty"`
	AdditionalThoughts *string   `json:"additional_thoughts,omitempty"`
}

// Participant identifies who took a tasting.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Sign-in validation errors.
var (
	ErrMissingName        = errors.New("name is required")
	ErrMissingEmail       = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email is not a valid address")
	ErrMissingSessionCode = errors.New("session code is required")
)

// FieldError ties a validation failure to the input field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// SignInRequest is the payload of the signin step.
type SignInRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	SessionCode string `json:"session_code"`
}

// Validate checks the sign-in fields in display order and reports the first failure.
func (r *SignInRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &FieldError{Field: "name", Err: ErrMissingName}
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return &FieldError{Field: "email", Err: ErrMissingEmail}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &FieldError{Field: "email", Err: ErrInvalidEmail}
	}
	if strings.TrimSpace(r.SessionCode) == "" {
		return &FieldError{Field: "session_code", Err: ErrMissingSessionCode}
	}
	return nil
}

// Participant returns the trimmed participant identity from the request.
func (r *SignInRequest) Participant() Participant {
	return Participant{Name: strings.TrimSpace(r.Name), Email: strings.TrimSpace(r.Email)}
}

// Submission is the answer snapshot sent once a participant reaches the thanks step.
type Submission struct {
	ID           string                `json:"id"`
	SessionID    string                `json:"session_id"`
	TastingCode  string                `json:"tasting_code"`
	PackageID    int64                 `json:"package_id"`
	Participant  Participant           `json:"participant"`
	Bottles      map[int]string        `json:"bottles,omitempty"`
	Answers      map[int]BottleAnswers `json:"answers"`
	Responses    map[int][]string      `json:"responses,omitempty"`
	Summary      string                `json:"summary,omitempty"`
	UsedFallback bool                  `json:"used_fallback,omitempty"`
	SubmittedAt  time.Time             `json:"submitted_at"`
}
