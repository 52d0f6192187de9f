package main

import (
	"github.com/trezcool/pinkconnect/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := cli.context()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = cli.now()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
