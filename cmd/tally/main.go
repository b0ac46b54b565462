package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/groblegark/tally/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	tenant     string
	secret     string
	jsonOutput bool

	ledgerClient client.LedgerClient
)

func defaultActorID() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultServerURL() string {
	if s := os.Getenv("TALLY_SERVER_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:   "tally <command>",
	Short: "CLI client for the tally credit ledger",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ledgerClient = client.NewHTTPClient(serverURL, tenant, secret)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ledgerClient != nil {
			ledgerClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL(), "ledger server URL")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", os.Getenv("TALLY_TENANT"), "tenant name")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("TALLY_SECRET"), "tenant signing secret")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "ledger", Title: "Ledger:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Ledger
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(verifyCmd)

	// Views
	rootCmd.AddCommand(creditCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
