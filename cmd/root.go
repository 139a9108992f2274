package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crowdfunding",
	Short: "Crowdfunding payments service",
	Long:  "Donation payments for crowdfunding campaigns: gateway checkout, callbacks, campaign totals and background jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
