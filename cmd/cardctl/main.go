// cardctl is a terminal client for the session API. It keeps the token in a
// local file and walks views through the same guard a browser front end uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dtroode/cardbook-server/internal/client"
	"github.com/dtroode/cardbook-server/internal/logger"
)

var routes = client.Routes{
	LoginView:   "login",
	DefaultView: "dashboard",
	Public:      []string{"home", "about"},
}

const usage = `usage: cardctl [flags] <command> [args]

commands:
  login          log in and store the token
  logout         revoke the token and forget it
  whoami         print the current profile
  refresh        exchange the token for a new one
  open <view>    navigate to a view through the session guard

flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// terminal reports redirects and notices on stderr.
type terminal struct {
	w io.Writer
}

func (t terminal) Redirect(view string) {
	fmt.Fprintf(t.w, "-> %s\n", view)
}

func (t terminal) Notify(message string) {
	fmt.Fprintf(t.w, "! %s\n", message)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		serverURL    string
		tokenFile    string
		username     string
		passwordFile string
		horizon      time.Duration
		timeout      time.Duration
		logLevel     int
	)

	flagSet := pflag.NewFlagSet("cardctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&serverURL, "server", "s", envOr("CARDCTL_SERVER", "http://localhost:8000"), "API base URL")
	flagSet.StringVar(&tokenFile, "token-file", defaultTokenFile(), "where the token is kept")
	flagSet.StringVarP(&username, "username", "u", "", "login username")
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
	flagSet.DurationVar(&horizon, "horizon", client.DefaultHorizon, "how long a stored token is kept")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	flagSet.IntVar(&logLevel, "log-level", 8, "slog level (-4 debug, 0 info)")
	flagSet.Usage = func() {
		fmt.Fprint(stderr, usage)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return errors.New("missing command")
	}

	log := logger.NewWithWriter(stderr, logLevel)
	tty := terminal{w: stderr}
	session := client.NewSession(client.NewFileSlot(tokenFile, horizon, nil), log)
	c := client.New(session, client.Options{
		BaseURL:   serverURL,
		LoginView: routes.LoginView,
		Timeout:   timeout,
		Navigator: tty,
		Notifier:  tty,
	}, log)

	command, rest := flagSet.Arg(0), flagSet.Args()[1:]
	switch command {
	case "login":
		if username == "" {
			return errors.New("--username is required")
		}
		password, err := readPassword(passwordFile, stderr)
		if err != nil {
			return err
		}
		profile, err := c.Login(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "logged in as %s (%s)\n", profile.Username, profile.RealName)

	case "logout":
		if err := c.Logout(ctx); err != nil {
			fmt.Fprintf(stderr, "server logout failed: %v\n", err)
		}
		fmt.Fprintln(stdout, "logged out")

	case "whoami":
		if !session.IsLoggedIn() {
			return errors.New("not logged in")
		}
		profile, err := c.WhoAmI(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "id: %d\nusername: %s\nreal name: %s\nemail: %s\n",
			profile.ID, profile.Username, profile.RealName, profile.Email)

	case "refresh":
		if !session.IsLoggedIn() {
			return errors.New("not logged in")
		}
		expiresIn, err := c.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "token refreshed, expires in %s\n", time.Duration(expiresIn)*time.Second)

	case "open":
		if len(rest) != 1 {
			return errors.New("open takes exactly one view")
		}
		guard := client.NewGuard(session, c, tty, routes, log)
		decision := guard.BeforeNavigate(ctx, rest[0])
		switch {
		case decision.Allow:
			fmt.Fprintf(stdout, "opened %s\n", rest[0])
		case decision.Redirect != "":
			fmt.Fprintf(stdout, "redirected to %s\n", decision.Redirect)
		default:
			fmt.Fprintln(stdout, "navigation aborted")
		}

	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func readPassword(passwordFile string, stderr io.Writer) (string, error) {
	if passwordFile != "" && passwordFile != "-" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", passwordFile, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt (use --password-file)")
	}

	fmt.Fprint(stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "cardctl", "token.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
