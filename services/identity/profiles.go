package identitysvc

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/profile"
)

// ProfileStore reads & creates profiles through the provider REST API, as the signed in subject.
type ProfileStore struct {
	client *Client
}

var _ profile.Store = (*ProfileStore)(nil)

func NewProfileStore(client *Client) *ProfileStore {
	return &ProfileStore{client: client}
}

func (s *ProfileStore) FindByID(ctx context.Context, id string) (profile.Profile, error) {
	token, err := s.client.AccessToken(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	var p profile.Profile
	err = s.client.do(ctx, http.MethodGet, "/rest/v1/profiles/"+url.PathEscape(id), token, nil, &p)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return profile.Profile{}, profile.ErrNotFound
		}
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *ProfileStore) Insert(ctx context.Context, np profile.NewProfile) error {
	token, err := s.client.AccessToken(ctx)
	if err != nil {
		return err
	}
	err = s.client.do(ctx, http.MethodPost, "/rest/v1/profiles", token, np, nil)
	if hasStatus(err, http.StatusConflict) {
		return profile.ErrDuplicate
	}
	return err
}

func hasStatus(err error, status int) bool {
	idErr, ok := identity.AsError(err)
	return ok && idErr.Status == status
}
