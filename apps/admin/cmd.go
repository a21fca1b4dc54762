package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/session"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errFacultyOnly = errors.New("permission denied: sign in as a faculty member")

	errEphemeralStore = errors.New("the admin CLI needs a persistent store: set storageDriver to postgres or redis")
)

type commandLine struct {
	db      *sql.DB // postgres driver only
	conf    *core.Config
	usrSvc  *user.Service
	session *session.Store
	snap    *snapshot.Snapshot
	mailer  core.EmailService
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                         - run a goose command on the postgres store")
	fmt.Fprintln(cli.out, "  addfaculty -name NAME -email EMAIL             - sign up a faculty member")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                     - reset a user's password")
	fmt.Fprintln(cli.out, "  login -email EMAIL                             - sign in")
	fmt.Fprintln(cli.out, "  logout                                         - sign out")
	fmt.Fprintln(cli.out, "  whoami                                         - print the signed in user")
	fmt.Fprintln(cli.out, "  changepassword                                 - change the signed in user's password")
	fmt.Fprintln(cli.out, "  stats [-section ID]                            - print the dashboard (faculty)")
	fmt.Fprintln(cli.out, "  export -out FILE [-section ID] [-email EMAIL]  - export progress as XLSX (faculty)")
}

// run executes the command in args and returns once the mail it queued has gone out.
func (cli *commandLine) run(args []string) error {
	defer cli.mailer.Wait()

	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addFacultyCmd := flag.NewFlagSet("addfaculty", flag.ContinueOnError)
	addFacultyName := addFacultyCmd.String("name", "", "The faculty member's full name.")
	addFacultyEmail := addFacultyCmd.String("email", "", "The faculty member's email. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "Your email. The password will be prompted next.")

	statsCmd := flag.NewFlagSet("stats", flag.ContinueOnError)
	statsSection := statsCmd.String("section", "", "Limit the dashboard to a section ID.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportOut := exportCmd.String("out", "", "The XLSX file to write.")
	exportSection := exportCmd.String("section", "", "Limit the export to a section ID.")
	exportEmail := exportCmd.String("email", "", "Also email the export to this address.")

	for _, fs := range []*flag.FlagSet{addFacultyCmd, resetPasswordCmd, loginCmd, statsCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addfaculty":
		if err := addFacultyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addFacultyName == "" || *addFacultyEmail == "" {
			addFacultyCmd.Usage()
			return errHelp
		}
		pwd, confirm, err := cli.promptNewPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addFacultyCmd.Usage()
			return errHelp
		}
		return cli.addFaculty(*addFacultyName, *addFacultyEmail, pwd, confirm)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.prompt("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.prompt("Enter password:")
		if err != nil {
			return err
		}
		return cli.login(*loginEmail, pwd)

	case "logout":
		return cli.logout()

	case "whoami":
		return cli.whoami()

	case "changepassword":
		if _, ok := cli.session.Current(); !ok {
			return core.ErrUnauthenticated
		}
		pwd, confirm, err := cli.promptNewPassword()
		if err != nil {
			return err
		}
		return cli.changePassword(pwd, confirm)

	case "stats":
		if err := statsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.stats(*statsSection)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportOut == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportOut, *exportSection, *exportEmail)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) prompt(label string) (string, error) {
	fmt.Fprint(cli.out, label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) promptNewPassword() (pwd, confirm string, err error) {
	if pwd, err = cli.prompt("Enter password:"); err != nil || pwd == "" {
		return pwd, "", err
	}
	confirm, err = cli.prompt("Confirm password:")
	return pwd, confirm, err
}
