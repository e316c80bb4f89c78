package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd)
	policyCmd.AddCommand(policyActivateCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and switch policy versions",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored policy versions",
	RunE:  runPolicyList,
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	_, store, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	policies, err := store.ListPolicies(cmd.Context())
	if err != nil {
		return err
	}
	for _, p := range policies {
		marker := " "
		if p.Active {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, p.Version)
	}
	return nil
}

var policyActivateCmd = &cobra.Command{
	Use:   "activate VERSION",
	Short: "Make VERSION the active policy",
	Long: `Switch the active policy version. Existing lots keep the amounts of the
version that granted them until the next generation run recomputes them.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyActivate,
}

func runPolicyActivate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	_, store, err := openEngine(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ActivatePolicy(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("active policy: %s\n", args[0])
	return nil
}
