package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/storage/database"
)

type profileRepository struct {
	exec core.DBExecutor
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(exec core.DBExecutor) profile.Repository {
	return &profileRepository{exec: exec}
}

func (repo profileRepository) GetProfileByID(ctx context.Context, id string) (profile.Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return profile.Profile{}, profile.ErrNotFound
	}

	var p profile.Profile
	err := repo.exec.GetContext(ctx, &p, `
SELECT id, email, full_name, role, avatar_url, phone, created_at, updated_at
FROM profiles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, errors.Wrap(err, "selecting profile")
	}
	return p, nil
}

func (repo profileRepository) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	_, err := repo.exec.ExecContext(ctx, `
INSERT INTO profiles (id, email, full_name, role, avatar_url, phone, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Email, p.FullName, p.Role, p.AvatarURL, p.Phone, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return profile.Profile{}, profile.ErrDuplicate
		}
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}
