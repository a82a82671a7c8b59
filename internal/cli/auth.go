package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/config"
	"github.com/existflow/punch/internal/remote"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Manage authentication with punch-server remotes.`,
}

var loginCmd = &cobra.Command{
	Use:   "login <remote>",
	Short: "Login to a punch-server remote",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <remote>",
	Short: "Logout from a punch-server remote",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register <remote>",
	Short: "Create a new account on a punch-server remote",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)
}

// httpRemote returns the named remote, which must be a punch-server
func httpRemote(name string) (config.Remote, error) {
	r, ok := cfg.Remote(name)
	if !ok {
		return r, fmt.Errorf("no remote named %q in %s", name, cfg.Path())
	}
	if r.Type != config.RemoteHTTP {
		return r, fmt.Errorf("remote %s is of type %s; only %s remotes need a login", name, r.Type, config.RemoteHTTP)
	}
	if r.URL == "" {
		return r, fmt.Errorf("remote %s has no url", name)
	}
	return r, nil
}

func readLine(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// saveSession stores what the server handed back for the remote
func saveSession(r config.Remote, session api.Session) error {
	auth, err := config.LoadAuth()
	if err != nil {
		return err
	}
	auth.Set(r.Name, config.Credentials{
		ServerURL: r.URL,
		Token:     session.Token,
		UserID:    session.UserID,
	})
	return auth.Save()
}

func runLogin(cmd *cobra.Command, args []string) error {
	r, err := httpRemote(args[0])
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	username := readLine(reader, "Username: ")
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	fmt.Println("🔄 Logging in...")
	session, err := remote.Login(cmd.Context(), r.URL, api.Credentials{Username: username, Password: password})
	if err != nil {
		return err
	}
	if err := saveSession(r, session); err != nil {
		return err
	}

	fmt.Printf("✅ Logged in to %s!\n", r.DisplayName())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	r, err := httpRemote(args[0])
	if err != nil {
		return err
	}
	auth, err := config.LoadAuth()
	if err != nil {
		return err
	}

	creds, ok := auth.Get(r.Name)
	if !ok {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Println("🔄 Logging out...")
	url := creds.ServerURL
	if url == "" {
		url = r.URL
	}
	// The local token is dropped even if the server cannot be reached
	if err := remote.NewHTTP(url, creds.Token).Logout(cmd.Context()); err != nil && !errors.Is(err, remote.ErrNotLoggedIn) {
		fmt.Printf("⚠️  Server logout failed: %v\n", err)
	}

	auth.Delete(r.Name)
	if err := auth.Save(); err != nil {
		return err
	}

	fmt.Println("✅ Logged out successfully.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	r, err := httpRemote(args[0])
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	username := readLine(reader, "Username: ")
	email := readLine(reader, "Email: ")

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirmPassword, err := readPassword("Confirm Password: ")
	if err != nil {
		return err
	}
	if password != confirmPassword {
		return fmt.Errorf("passwords do not match")
	}

	fmt.Println("🔄 Creating account...")
	session, err := remote.Register(cmd.Context(), r.URL, api.Credentials{Username: username, Email: email, Password: password})
	if err != nil {
		return err
	}
	if err := saveSession(r, session); err != nil {
		return err
	}

	fmt.Println("✅ Account created and logged in!")
	return nil
}
