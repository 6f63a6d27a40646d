package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "dealdesk",
	Short:   "Meal coupon purchase negotiation bot",
	Version: version,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(declineCmd)
	rootCmd.AddCommand(paidCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(failCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
