// Command bookctl is the operator's terminal client.  Operator commands go
// through the HTTP API; token and hash-password work offline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	api := &apiClient{}
	rootCmd := &cobra.Command{
		Use:           "bookctl",
		Short:         "bookctl - operator console for workday bookings",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&api.baseURL, "server", envOr("BOOKCTL_SERVER", "http://localhost:8080"), "Booking API base URL")
	rootCmd.PersistentFlags().StringVar(&api.token, "token", os.Getenv("BOOKCTL_TOKEN"), "Operator access token")

	// Operator commands
	rootCmd.AddCommand(statusCmd(api))
	rootCmd.AddCommand(todayCmd(api))
	rootCmd.AddCommand(upcomingCmd(api))
	rootCmd.AddCommand(remindCmd(api))
	rootCmd.AddCommand(refundCmd(api))
	rootCmd.AddCommand(statsCmd(api))
	rootCmd.AddCommand(loginCmd(api))

	// Offline helpers
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
