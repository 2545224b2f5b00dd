package secret

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/cmd/root"
)

var SecretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the client secret in the OS keyring",
}

var setCmd = &cobra.Command{
	Use:   "set [secret]",
	Short: "Store the client secret in the OS keyring",
	Long: `Store the client secret in the OS keyring. Without an argument the secret is read from stdin.
Set use_keyring: true in the config file to use it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string
		if len(args) == 1 {
			value = args[0]
		} else {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read secret: %w", err)
			}
			value = strings.TrimSpace(line)
		}
		if value == "" {
			return fmt.Errorf("secret cannot be empty")
		}

		kr, err := anonapi.OpenKeyring()
		if err != nil {
			return fmt.Errorf("failed to open keyring: %w", err)
		}
		if err := anonapi.StoreSecret(kr, value); err != nil {
			return fmt.Errorf("failed to store secret: %w", err)
		}
		root.GetLogger().Info("Client secret stored in keyring")
		return nil
	},
}

func init() {
	SecretCmd.AddCommand(setCmd)
	root.RootCmd.AddCommand(SecretCmd)
}
