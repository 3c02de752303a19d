package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/workday-booking/internal/middleware"
	"github.com/iliyamo/workday-booking/internal/utils"
)

// runLine builds a RunE that sends "/name args..." to the API and prints
// the reply.
func runLine(api *apiClient, name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		line := strings.TrimSpace("/" + name + " " + strings.Join(args, " "))
		reply, err := api.command(cmd.Context(), line)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	}
}

func statusCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status [client_id]",
		Short: "Show the latest booking of a client",
		Args:  cobra.ExactArgs(1),
		RunE:  runLine(api, "status"),
	}
}

func todayCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's bookings",
		Args:  cobra.NoArgs,
		RunE:  runLine(api, "today"),
	}
}

func upcomingCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "upcoming [days]",
		Short: "List confirmed bookings still waiting for a brief",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLine(api, "upcoming"),
	}
}

func remindCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send today's final payment reminders now",
		Args:  cobra.NoArgs,
		RunE:  runLine(api, "remind"),
	}
}

func refundCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "refund [payment_id] [amount]",
		Short: "Refund a succeeded payment, fully or partially",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runLine(api, "refund"),
	}
}

func statsCmd(api *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count bookings per status",
		Args:  cobra.NoArgs,
		RunE:  runLine(api, "stats"),
	}
}

func loginCmd(api *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as the operator and print an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			pass, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			tok, err := api.login(cmd.Context(), user, pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringP("user", "u", "operator", "Operator username")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Mint an access token with JWT_SECRET (client id or operator name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			role, _ := cmd.Flags().GetString("role")
			role = strings.ToUpper(role)
			if role != middleware.RoleClient && role != middleware.RoleOperator {
				return fmt.Errorf("role must be %s or %s", middleware.RoleClient, middleware.RoleOperator)
			}
			if role == middleware.RoleClient {
				if id, err := strconv.ParseInt(args[0], 10, 64); err != nil || id <= 0 {
					return fmt.Errorf("client tokens need a numeric client id")
				}
			}
			ttl, _ := cmd.Flags().GetInt("ttl")
			tok, err := utils.NewAccessToken(secret, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringP("role", "r", middleware.RoleOperator, "Token role (CLIENT, OPERATOR)")
	cmd.Flags().Int("ttl", 60, "Lifetime in minutes")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for OPERATOR_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			if pass == "" {
				return fmt.Errorf("empty password")
			}
			cost, _ := cmd.Flags().GetInt("cost")
			hash, err := utils.HashPassword(pass, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

// readSecret reads one line from the command's input.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
