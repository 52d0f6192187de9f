package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
)

var errInvalidRole = errors.New("role must be parent or teacher")

// addUser updates or creates a user.User, then creates its profile if missing.
func (cli *commandLine) addUser(email, name, role, pwd string, confirmed bool) (user.User, error) {
	ctx := cli.context()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	role = core.CleanString(role, true /* lower */)
	if !profile.ValidRole(role) {
		return user.User{}, errInvalidRole
	}
	now := cli.now()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}
		usr = user.User{Email: email, CreatedAt: now}
	}
	if name != "" {
		usr.FullName = name
	}
	usr.Role = role
	usr.UpdatedAt = now
	if confirmed && !usr.IsConfirmed() {
		usr.Confirm(now)
	}
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	if err != nil {
		return user.User{}, err
	}

	if _, err = cli.prfRepo.GetProfileByID(ctx, usr.ID); errors.Cause(err) == profile.ErrNotFound {
		prf := profile.Profile{
			ID:        usr.ID,
			Email:     usr.Email,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if usr.FullName != "" {
			prf.FullName = core.StringPtr(usr.FullName)
		}
		if _, err = cli.prfRepo.CreateProfile(ctx, prf); err != nil && errors.Cause(err) != profile.ErrDuplicate {
			return user.User{}, err
		}
	} else if err != nil {
		return user.User{}, err
	}
	return usr, nil
}
