package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjordsec/fjordftpd/pkg/pathacl"
	"github.com/fjordsec/fjordftpd/pkg/users"
)

var (
	explainUser       string
	explainIP         string
	explainPath       string
	explainPermission string
	explainJSON       bool
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain a permission decision",
	Long: `Explain evaluates a single (user, ip, path, permission) request against
the configured access rules and prints every intermediate result: the
ancestor paths visited, the rules that matched, and the effective
permission set. Nothing is cached or logged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadServerConfig()
		if err != nil {
			return err
		}

		engine := pathacl.NewEngine(pathacl.NewFileSource(config.ACLFilePath), pathacl.NopObserver{})

		// Pull the account so user-level IP restrictions participate. An
		// unknown username is explained as a bare account.
		user := &users.User{Username: explainUser}
		repository := users.NewRepository(users.NewFileSource(config.UsersFilePath), time.Second)
		if loaded, err := repository.GetUser(explainUser); err == nil {
			user = loaded
		}

		explanation := engine.Explain(user, explainIP, explainPath, explainPermission)

		if explainJSON {
			out, err := json.MarshalIndent(explanation, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		printExplanation(explanation)
		return nil
	},
}

func printExplanation(e *pathacl.Explanation) {
	verdict := "DENIED"
	if e.Allowed {
		verdict = "ALLOWED"
	}
	fmt.Printf("%s: %s\n", verdict, e.Reason)

	if !e.IPGatePassed {
		return
	}
	if len(e.Ancestors) > 0 {
		fmt.Printf("paths visited: %s\n", strings.Join(e.Ancestors, " -> "))
	}
	for _, r := range e.MatchedRules {
		fmt.Printf("  rule at %s (depth %d, priority %d, order %d): users=%v permissions=%v",
			r.Path, r.Depth, r.Priority, r.Order, r.Users, r.Permissions)
		if r.OverrideInherited {
			fmt.Print(" override_inherited")
		}
		fmt.Println()
	}
	fmt.Printf("effective permissions: %v\n", e.EffectivePermissions)
}

func init() {
	explainCmd.Flags().StringVar(&explainUser, "user", "", "username to evaluate")
	explainCmd.Flags().StringVar(&explainIP, "ip", "", "client IP address")
	explainCmd.Flags().StringVar(&explainPath, "path", "/", "folder or file path")
	explainCmd.Flags().StringVar(&explainPermission, "permission", "read", "permission token to test")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "print the explanation as JSON")
	cobra.CheckErr(explainCmd.MarkFlagRequired("user"))
	cobra.CheckErr(explainCmd.MarkFlagRequired("ip"))

	rootCmd.AddCommand(explainCmd)
}
