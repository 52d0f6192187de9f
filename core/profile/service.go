package profile

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound  = errors.New("profile not found")
	ErrDuplicate = errors.New("a profile with this id already exists")
)

type (
	// Store is the profile surface consumed by portal clients.
	Store interface {
		// FindByID returns ErrNotFound when no profile exists for id.
		FindByID(ctx context.Context, id string) (Profile, error)
		// Insert returns ErrDuplicate when a profile already exists for the id.
		Insert(ctx context.Context, np NewProfile) error
	}

	Repository interface {
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Store = (*Service)(nil)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) FindByID(ctx context.Context, id string) (Profile, error) {
	if id == "" {
		return Profile{}, ErrNotFound
	}
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *Service) Insert(ctx context.Context, np NewProfile) error {
	_, err := svc.Create(ctx, np)
	return err
}

// Create validates np and stores it with server-generated timestamps.
func (svc *Service) Create(ctx context.Context, np NewProfile) (Profile, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Profile{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateProfile(ctx, Profile{
		ID:        np.ID,
		Email:     np.Email,
		FullName:  np.FullName,
		Role:      np.Role,
		AvatarURL: np.AvatarURL,
		Phone:     np.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	})
}
