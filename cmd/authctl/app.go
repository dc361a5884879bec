package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	oa "github.com/panyam/authcore"
	"github.com/panyam/authcore/client"
)

const usage = `commands:
  signup                 create an account (prompts for name, email, password)
  login                  sign in (prompts for email, password)
  verify <code>          confirm the emailed verification code
  resend <email>         send a fresh verification code
  whoami                 show the signed-in account
  logout                 sign out and forget the stored credential
  forgot <email>         request a password reset link
  reset <token>          set a new password with a reset token
  user <id>              show an account
  delete <id>            delete an account
  users [-new]           list accounts (admin)`

var errUsage = errors.New("invalid arguments, run authctl -h for usage")

// App runs one command against an AuthClient.
type App struct {
	Client *client.AuthClient

	in  *bufio.Reader
	out io.Writer

	// readPassword reads without echo when stdin is a terminal
	readPassword func() (string, error)
}

func NewApp(c *client.AuthClient, in io.Reader, out io.Writer) *App {
	a := &App{Client: c, in: bufio.NewReader(in), out: out}
	a.readPassword = a.terminalPassword
	return a
}

func (a *App) terminalPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.readLine()
	}
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *App) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	return a.readLine()
}

func (a *App) promptPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	return a.readPassword()
}

// Run dispatches args[0] with the remaining args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "signup":
		return a.signup(ctx)
	case "login":
		return a.login(ctx)
	case "verify":
		if len(args) != 1 {
			return errUsage
		}
		return a.printResult(a.Client.VerifyEmail(ctx, args[0]))
	case "resend":
		if len(args) != 1 {
			return errUsage
		}
		return a.printResult(a.Client.ResendVerification(ctx, args[0]))
	case "whoami":
		u, err := a.Client.CheckAuth(ctx)
		if err != nil {
			return err
		}
		a.printUser(u)
		return nil
	case "logout":
		if err := a.Client.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out")
		return nil
	case "forgot":
		if len(args) != 1 {
			return errUsage
		}
		return a.printResult(a.Client.ForgotPassword(ctx, args[0]))
	case "reset":
		if len(args) != 1 {
			return errUsage
		}
		pw, err := a.promptPassword()
		if err != nil {
			return err
		}
		return a.printResult(a.Client.ResetPassword(ctx, args[0], pw))
	case "user":
		if len(args) != 1 {
			return errUsage
		}
		u, err := a.Client.GetUser(ctx, args[0])
		if err != nil {
			return err
		}
		a.printUser(u)
		return nil
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		if err := a.Client.DeleteUser(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Deleted", args[0])
		return nil
	case "users":
		newest := len(args) == 1 && args[0] == "-new"
		users, err := a.Client.ListUsers(ctx, newest)
		if err != nil {
			return err
		}
		for _, u := range users {
			a.printUser(u)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *App) signup(ctx context.Context) error {
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := a.promptPassword()
	if err != nil {
		return err
	}
	return a.printResult(a.Client.Signup(ctx, name, email, pw))
}

func (a *App) login(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := a.promptPassword()
	if err != nil {
		return err
	}
	return a.printResult(a.Client.Login(ctx, email, pw))
}

func (a *App) printResult(res *client.Result, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	if res.User != nil {
		a.printUser(res.User)
	}
	return nil
}

func (a *App) printUser(u *oa.User) {
	role := "user"
	if u.IsAdmin {
		role = "admin"
	}
	verified := "unverified"
	if u.IsVerified {
		verified = "verified"
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.EmailAddress(), role, verified)
}
