package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardkeep/wardkeep/internal/sealvault"
)

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultListCmd)
	vaultCmd.AddCommand(vaultShowCmd)
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Sealed package operations",
	Long:  "Commands for inspecting sealed configuration packages.",
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sealed packages, newest first",
	RunE:  runVaultList,
}

var vaultShowCmd = &cobra.Command{
	Use:   "show <package-id>",
	Short: "Show one sealed package, payload included",
	Args:  cobra.ExactArgs(1),
	RunE:  runVaultShow,
}

func openVault() (*sealvault.Vault, error) {
	v, err := sealvault.Open(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	return v, nil
}

func runVaultList(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	packages, err := v.List(context.Background())
	if err != nil {
		return err
	}

	type item struct {
		ID       string `json:"id"`
		EntityID string `json:"entity_id"`
		KeyID    string `json:"key_id"`
		SealedAt string `json:"sealed_at"`
	}
	items := make([]item, len(packages))
	for i, p := range packages {
		items[i] = item{
			ID:       p.ID,
			EntityID: p.EntityID,
			KeyID:    p.KeyID,
			SealedAt: p.SealedAt.Format(time.RFC3339),
		}
	}

	out, _ := json.MarshalIndent(items, "", "  ")
	fmt.Println(string(out))
	return nil
}

func runVaultShow(cmd *cobra.Command, args []string) error {
	v, err := openVault()
	if err != nil {
		return err
	}
	defer v.Close()

	p, err := v.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(out))
	return nil
}
