package landingzone

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	lzerrors "github.com/franksops/lzstage/errors"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(question string) bool

// Resolution is the outcome of resolving a destination.
type Resolution struct {
	// UUID is the landing zone identifier, empty when a raw collection path was given.
	UUID string
	// Path is the collection files are staged into.
	Path string
}

// Resolver turns a destination given on the command line into a collection.
// The destination is a raw collection path, a project UUID or a landing zone UUID.
type Resolver struct {
	API API
	// Confirm is the only interactive step. A nil Confirm declines every question.
	Confirm ConfirmFunc
	Logger  *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Resolver) confirm(question string) bool {
	if r.Confirm == nil {
		return false
	}
	return r.Confirm(question)
}

// Resolve picks or creates the landing zone for destination. With assumeYes
// the destination must be a project and no question is asked.
func (r *Resolver) Resolve(ctx context.Context, destination string, assumeYes bool, assay string) (Resolution, error) {
	logger := r.logger()

	if strings.HasPrefix(destination, "/") {
		res := Resolution{Path: path.Clean(destination)}
		logger.Info("using collection path as given", "path", res.Path)
		return res, nil
	}
	if _, err := uuid.Parse(destination); err != nil {
		return Resolution{}, lzerrors.New(lzerrors.CodeInvalidDestination, "resolve", destination,
			"neither a collection path nor a UUID")
	}

	var (
		res Resolution
		err error
	)
	if assumeYes {
		res, err = r.resolveProject(ctx, destination, assay)
	} else {
		res, err = r.resolveInteractive(ctx, destination, assay)
	}
	if err != nil {
		return Resolution{}, err
	}
	logger.Info("target collection", "path", res.Path, "landing_zone", res.UUID)
	return res, nil
}

// resolveProject uses the latest eligible zone of the project or creates one.
func (r *Resolver) resolveProject(ctx context.Context, project, assay string) (Resolution, error) {
	zone, found, err := r.latest(ctx, project, assay)
	if err != nil {
		r.logger().Error("unable to list landing zones", "project", project, "error", err)
		return Resolution{}, lzerrors.Wrap(lzerrors.CodeRemote, "list landing zones", project, err)
	}
	if found {
		return Resolution{UUID: zone.UUID, Path: zone.IrodsPath}, nil
	}
	r.logger().Info("no active landing zone available, creating one", "project", project)
	return r.create(ctx, project, assay)
}

func (r *Resolver) resolveInteractive(ctx context.Context, destination, assay string) (Resolution, error) {
	logger := r.logger()

	zone, found, err := r.latest(ctx, destination, assay)
	if err != nil {
		// Probably not a project; try the destination as a landing zone.
		logger.Debug("destination may not be a project", "destination", destination, "error", err)
		return r.resolveZone(ctx, destination)
	}

	if found {
		logger.Info("found active landing zone", "path", zone.IrodsPath, "landing_zone", zone.UUID)
		if r.confirm(fmt.Sprintf("Can the process use %s?", zone.IrodsPath)) {
			return Resolution{UUID: zone.UUID, Path: zone.IrodsPath}, nil
		}
		logger.Info("an alternative is to create another landing zone", "project", destination)
	} else {
		logger.Info("no active landing zone available", "project", destination)
	}

	if !r.confirm("Can the process create a new landing zone?") {
		return Resolution{}, lzerrors.New(lzerrors.CodeUserCanceled, "resolve", destination,
			"not possible to continue without a landing zone")
	}
	return r.create(ctx, destination, assay)
}

func (r *Resolver) resolveZone(ctx context.Context, id string) (Resolution, error) {
	zone, err := r.API.GetLandingZone(ctx, id)
	if err != nil {
		r.logger().Debug("destination may not be a landing zone", "destination", id, "error", err)
		return Resolution{}, lzerrors.Wrap(lzerrors.CodeParameter, "resolve", id,
			fmt.Errorf("not a known project or landing zone: %w", err))
	}
	if !zone.Eligible() {
		return Resolution{}, lzerrors.New(lzerrors.CodeParameter, "resolve", id,
			"landing zone is %s, not ACTIVE or FAILED", zone.Status)
	}
	if zone.IrodsPath == "" {
		return Resolution{}, lzerrors.New(lzerrors.CodeParameter, "resolve", id, "landing zone has no path")
	}
	return Resolution{UUID: zone.UUID, Path: zone.IrodsPath}, nil
}

func (r *Resolver) create(ctx context.Context, project, assay string) (Resolution, error) {
	r.logger().Info("creating new landing zone", "project", project, "assay", assay)
	zone, err := r.API.CreateLandingZone(ctx, project, assay)
	if err != nil {
		r.logger().Error("unable to create landing zone", "project", project, "error", err)
		return Resolution{}, lzerrors.Wrap(lzerrors.CodeRemote, "create landing zone", project, err)
	}
	return Resolution{UUID: zone.UUID, Path: zone.IrodsPath}, nil
}

// latest returns the most recently modified eligible zone of project.
func (r *Resolver) latest(ctx context.Context, project, assay string) (LandingZone, bool, error) {
	zones, err := r.API.ListLandingZones(ctx, project, assay)
	if err != nil {
		return LandingZone{}, false, err
	}

	var (
		best  LandingZone
		found bool
	)
	for _, z := range zones {
		if !z.Eligible() || (assay != "" && z.Assay != assay) {
			continue
		}
		if !found || z.DateModified.After(best.DateModified) {
			best, found = z, true
		}
	}
	return best, found, nil
}
