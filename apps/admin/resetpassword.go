package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	usr, err := cli.usrSvc.ResetPassword(context.Background(), email, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s reset\n", usr.Email)
	return nil
}
