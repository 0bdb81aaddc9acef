// Package models defines the core data structures for TastingFlow.
//
// It includes the tasting catalog (packages, bottles, raw question rows), the canonical
// survey steps produced from them, participant answers, and the JSON envelope used by the API.
package models

import (
	"errors"
	"strings"
	"time"
)

// Package is a curated flight of bottles offered as one tasting.
type Package struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Bottles     string `json:"bottles"` // comma-separated bottle names, in tasting order
}

// BottleNames splits the package's declared bottle list, preserving order.
func (p Package) BottleNames() []string {
	var names []string
	for _, part := range strings.Split(p.Bottles, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Bottle is one wine in a package. Sequence is set only when the store carries an explicit order.
type Bottle struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Sequence  *int          `json:"sequence,omitempty"`
	Questions []RawQuestion `json:"questions,omitempty"`
}

// RawQuestion is a question row as stored, before normalization.
// Choices holds whatever the store produced: nil, a delimited string, a JSON array string, or a list.
type RawQuestion struct {
	ID         int64  `json:"id"`
	BottleID   int64  `json:"bottle_id,omitempty"`
	BottleName string `json:"bottle_name,omitempty"`
	Prompt     string `json:"question_text"`
	Type       string `json:"question_type"`
	Choices    any    `json:"choices,omitempty"`
	HelpText   string `json:"help_text,omitempty"`
	MediaURL   string `json:"media_url,omitempty"`
	ForHost    bool   `json:"for_host,omitempty"`
	Position   int    `json:"position,omitempty"`
}

// Tasting is a host-run occurrence of a package that participants join with a code.
type Tasting struct {
	Code      string    `json:"code"`
	PackageID int64     `json:"package_id"`
	HostName  string    `json:"host_name,omitempty"`
	HostPhone string    `json:"host_phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TastingRequest is the payload for opening a new tasting.
type TastingRequest struct {
	PackageID int64  `json:"package_id"`
	HostName  string `json:"host_name,omitempty"`
	HostPhone string `json:"host_phone,omitempty"`
}

// ErrMissingPackageID is returned when a tasting request names no package.
var ErrMissingPackageID = errors.New("package_id is required")

// Validate checks a TastingRequest.
func (r *TastingRequest) Validate() error {
	if r.PackageID <= 0 {
		return ErrMissingPackageID
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Field   string      `json:"field,omitempty"` // set for field-level validation errors
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// FieldErrorResponse creates an error API response naming the offending field.
func FieldErrorResponse(fe *FieldError) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: fe.Error(), Field: fe.Field}
}
