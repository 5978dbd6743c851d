package location

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrInvalidLocation = errors.New("invalid location")

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type Service interface {
	ListActiveLocations(ctx context.Context, businessID string) ([]Location, error)
	GetLocation(ctx context.Context, id string) (Location, error)

	Create(ctx context.Context, req CreateLocationRequest) (Location, error)
	Deactivate(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func (s *service) ListActiveLocations(ctx context.Context, businessID string) ([]Location, error) {
	locations, err := s.repo.GetActiveLocations(ctx, businessID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return locations, nil
}

func (s *service) GetLocation(ctx context.Context, id string) (Location, error) {
	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return loc, errors.WithStack(err)
	}
	return loc, nil
}

func (s *service) Create(ctx context.Context, req CreateLocationRequest) (Location, error) {
	const funcName = "Create"

	name := strings.TrimSpace(req.Name)
	if req.BusinessID == "" || name == "" {
		return Location{}, errors.WithMessage(ErrInvalidLocation, "business id and name are required")
	}
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return Location{}, errors.WithMessage(ErrInvalidLocation, err.Error())
	}

	loc := Location{
		ID:         uuid.NewString(),
		BusinessID: req.BusinessID,
		Name:       name,
		LocalName:  strings.TrimSpace(req.LocalName),
		Kind:       kind,
		Active:     true,
		Created:    time.Now(),
	}

	log.Info().
		Str("func", funcName).
		Str("businessId", loc.BusinessID).
		Str("locationId", loc.ID).
		Str("kind", string(loc.Kind)).
		Msg("creating location")

	if err = s.repo.SaveLocation(ctx, loc); err != nil {
		return Location{}, errors.WithStack(err)
	}
	return loc, nil
}

// Deactivate removes a location from the set of valid transfer endpoints. It is
// idempotent; deactivating an inactive location is not an error.
func (s *service) Deactivate(ctx context.Context, id string) error {
	const funcName = "Deactivate"

	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	if !loc.Active {
		log.Debug().Str("func", funcName).Str("locationId", id).Msg("location already inactive")
		return nil
	}

	log.Info().Str("func", funcName).Str("locationId", id).Msg("deactivating location")

	loc.Active = false
	if err = s.repo.SaveLocation(ctx, loc); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
