package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Account password (read from stdin when empty)")
	rootCmd.AddCommand(signupCmd)
}

var signupPassword string

var signupCmd = &cobra.Command{
	Use:   "signup USERNAME EMAIL",
	Short: "Create a learner account",
	Args:  cobra.ExactArgs(2),
	RunE:  runSignup,
}

func runSignup(cmd *cobra.Command, args []string) error {
	password := signupPassword
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password = readLine(cmd.InOrStdin())
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	u, err := d.Accounts.Signup(cmd.Context(), args[0], args[1], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", u.Username, u.ID)
	return nil
}
