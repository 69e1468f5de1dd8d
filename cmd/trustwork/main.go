// TrustWork terminal client. Running it with no arguments starts the
// interactive TUI; subcommands cover the same operations for scripting.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/trustwork/trustwork/internal/config"
	"github.com/trustwork/trustwork/internal/tui"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trustwork",
		Short: "TrustWork — escrow-backed domestic work marketplace client",
		Long: `TrustWork connects employers with domestic workers. Payments sit in
escrow from funding until the employer marks the work done.

Run without arguments for the interactive terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			app, err := tui.NewApp(cfg)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(app, tea.WithAltScreen()).Run()
			return err
		},
	}

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newJobsCmd(),
		newEscrowCmd(),
		newFundCmd(),
		newWorkersCmd(),
		newChatsCmd(),
		newTransactionsCmd(),
	)
	return root
}
