package main

import (
	"context"
	"fmt"

	"github.com/nbkrcse/labtrack/core/user"
)

func (cli *commandLine) addFaculty(name, email, pwd, confirm string) error {
	usr, err := cli.usrSvc.SignupFaculty(context.Background(), user.NewFaculty{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "faculty %s <%s> added (%s)\n", usr.Name, usr.Email, usr.ID)
	return nil
}
