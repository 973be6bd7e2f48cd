package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/wardkeep/wardkeep/internal/artifact"
	"github.com/wardkeep/wardkeep/internal/boundary"
	"github.com/wardkeep/wardkeep/internal/ceremony"
	"github.com/wardkeep/wardkeep/internal/guardian"
	"github.com/wardkeep/wardkeep/internal/notify"
	"github.com/wardkeep/wardkeep/internal/sealvault"
)

const tokenEnv = "WARDKEEP_AUTH_TOKEN"

// authToken reads the activation token from the environment.
func authToken() (string, error) {
	token := os.Getenv(tokenEnv)
	if token == "" {
		return "", fmt.Errorf("%s is not set", tokenEnv)
	}
	return token, nil
}

// newEngine builds and initializes a policy engine from the loaded config.
func newEngine(token string) (*boundary.Engine, error) {
	eng, err := boundary.New(cfg.Domains.Boundary(), boundary.WithConfigProof(cfgHash))
	if err != nil {
		return nil, fmt.Errorf("create policy engine: %w", err)
	}
	if err := eng.Initialize(cfg.Principal, token, cfg.EntityID); err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	return eng, nil
}

// activation holds the components of a running protection stack.
type activation struct {
	engine   *boundary.Engine
	guardian *guardian.Guardian
	ceremony *ceremony.Orchestrator
	vault    *sealvault.Vault
}

// activate runs the full startup: engine from config, guardian wired to it,
// ceremony sworn and sealed. A nil bus disables notifications; withVault
// controls whether the sealed package is persisted.
func activate(ctx context.Context, bus *notify.Bus, withVault bool) (*activation, error) {
	token, err := authToken()
	if err != nil {
		return nil, err
	}

	eng, err := newEngine(token)
	if err != nil {
		return nil, err
	}

	interval, window, err := cfg.Guardian.Durations()
	if err != nil {
		return nil, err
	}

	opts := []guardian.Option{
		guardian.WithInterval(interval),
		guardian.WithAlertWindow(window),
		guardian.WithAlertThreshold(cfg.Guardian.AlertThreshold),
	}
	if bus != nil {
		opts = append(opts, guardian.WithBus(bus))
	}
	if len(cfg.Artifacts) > 0 {
		opts = append(opts, guardian.WithScanner(artifact.NewScanner(cfg.Artifacts)))
	}
	guard := guardian.New(eng, cfg.Audit.Path, opts...)

	var ceremonyOpts []ceremony.Option
	if bus != nil {
		ceremonyOpts = append(ceremonyOpts, ceremony.WithBus(bus))
	}

	var vault *sealvault.Vault
	if withVault {
		vault, err = sealvault.Open(cfg.Vault.Path)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		ceremonyOpts = append(ceremonyOpts, ceremony.WithSealer(vault))
	}

	orch := ceremony.New(ceremony.Config{
		Principal: cfg.Principal,
		KeyID:     cfg.Vault.KeyID,
	}, eng, guard, ceremonyOpts...)

	if _, err := orch.Swear(cfg.Principal, token); err != nil {
		closeVault(vault)
		return nil, fmt.Errorf("swear covenant: %w", err)
	}
	if _, err := orch.Seal(ctx); err != nil {
		closeVault(vault)
		return nil, fmt.Errorf("seal covenant: %w", err)
	}

	return &activation{engine: eng, guardian: guard, ceremony: orch, vault: vault}, nil
}

// shutdown stops the guardian and closes the vault. Returns the number of
// operations blocked over the run.
func (a *activation) shutdown() int {
	blocked, err := a.guardian.Stop()
	if err != nil {
		blocked = a.engine.ViolationCount()
	}
	closeVault(a.vault)
	return blocked
}

func closeVault(v *sealvault.Vault) {
	if v != nil {
		v.Close()
	}
}
