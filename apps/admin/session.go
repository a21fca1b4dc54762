package main

import (
	"context"
	"fmt"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/user"
)

func (cli *commandLine) login(email, pwd string) error {
	usr, err := cli.session.Login(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "signed in as %s\n", describe(usr))
	if cli.session.IsFirstLogin() {
		fmt.Fprintln(cli.out, "first login: run `changepassword` to replace the default password")
	}
	return nil
}

func (cli *commandLine) logout() error {
	if err := cli.session.Logout(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "signed out")
	return nil
}

func (cli *commandLine) whoami() error {
	usr, ok := cli.session.Current()
	if !ok {
		return core.ErrUnauthenticated
	}
	fmt.Fprintln(cli.out, describe(usr))
	return nil
}

func (cli *commandLine) changePassword(pwd, confirm string) error {
	if _, err := cli.session.ChangePassword(context.Background(), pwd, confirm); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "password changed")
	return nil
}

// currentFaculty returns the signed in user if it is a faculty member.
func (cli *commandLine) currentFaculty() (user.User, error) {
	usr, ok := cli.session.Current()
	if !ok {
		return user.User{}, core.ErrUnauthenticated
	}
	if !usr.IsFaculty() {
		return user.User{}, errFacultyOnly
	}
	return usr, nil
}

func describe(usr user.User) string {
	s := fmt.Sprintf("%s <%s> (%s", usr.Name, usr.Email, usr.Role)
	if usr.IsStudent() {
		s += ", " + usr.RollNumber()
	}
	return s + ")"
}
