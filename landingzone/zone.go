// Package landingzone talks to the landing zone service and turns the
// destination a user passes on the command line into a collection path.
package landingzone

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a landing zone.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFailed   Status = "FAILED"
	StatusMoved    Status = "MOVED"
	StatusCreating Status = "CREATING"
	StatusDeleted  Status = "DELETED"
)

// LandingZone is a remote collection files are staged into before they are
// validated and moved into the project archive.
type LandingZone struct {
	UUID         string    `json:"sodar_uuid"`
	Project      string    `json:"project"`
	Assay        string    `json:"assay"`
	Title        string    `json:"title,omitempty"`
	IrodsPath    string    `json:"irods_path"`
	Status       Status    `json:"status"`
	DateModified time.Time `json:"date_modified"`
}

// Eligible reports whether files may be staged into the zone.
func (z LandingZone) Eligible() bool {
	return z.Status == StatusActive || z.Status == StatusFailed
}

var (
	// ErrNotFound is returned when the project or landing zone does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the API token is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServerError is returned for 5xx answers.
	ErrServerError = errors.New("server error")
)

// API is the subset of the landing zone service used by the resolver and the CLI.
type API interface {
	ListLandingZones(ctx context.Context, project, assay string) ([]LandingZone, error)
	GetLandingZone(ctx context.Context, uuid string) (LandingZone, error)
	CreateLandingZone(ctx context.Context, project, assay string) (LandingZone, error)
	SubmitValidateAndMove(ctx context.Context, uuid string) error
}
