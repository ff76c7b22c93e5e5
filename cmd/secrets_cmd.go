package cmd

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/parrot/internal/config"
)

func secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Store credentials in the OS keyring",
		Long: `Secrets are looked up in this order: the PARROT_<NAME> environment
variable, the OS keyring, then the config file.

Known names: ` + strings.Join(config.KnownSecrets, ", "),
	}
	cmd.AddCommand(secretsSetCmd())
	cmd.AddCommand(secretsDeleteCmd())
	cmd.AddCommand(secretsListCmd())
	return cmd
}

func secretsSetCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "set [name]",
		Short: "Store a secret (prompted, or read from stdin with --stdin)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name := mustKnownSecret(args[0])

			var value string
			if fromStdin {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					fmt.Fprintf(os.Stderr, "Error reading stdin: %s\n", err)
					os.Exit(1)
				}
				value = strings.TrimSpace(line)
			} else {
				v, err := promptPassword(name, "Stored in the OS keyring, never in the config file")
				if err != nil {
					fmt.Println("Cancelled.")
					return
				}
				value = strings.TrimSpace(v)
			}
			if value == "" {
				fmt.Fprintln(os.Stderr, "Error: empty value")
				os.Exit(1)
			}

			if err := config.SetSecret(name, value); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Stored %s.\n", name)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the value from stdin")
	return cmd
}

func secretsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove a secret from the keyring",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			name := mustKnownSecret(args[0])
			if err := config.DeleteSecret(name); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Deleted %s.\n", name)
		},
	}
}

func secretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show which secrets resolve to a value",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.KnownSecrets {
				status := "(not set)"
				if v := config.ResolveSecret(name, ""); v != "" {
					status = maskSecret(v)
				}
				fmt.Printf("  %-18s %s\n", name+":", status)
			}
		},
	}
}

func mustKnownSecret(name string) string {
	name = strings.ToUpper(strings.TrimPrefix(name, "PARROT_"))
	if !slices.Contains(config.KnownSecrets, name) {
		fmt.Fprintf(os.Stderr, "Unknown secret %q. Known: %s\n", name, strings.Join(config.KnownSecrets, ", "))
		os.Exit(1)
	}
	return name
}

func maskSecret(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", 4) + v[len(v)-4:]
}
