package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goldengate/goldengate/internal/adapter/outbound/timelock"
	"github.com/goldengate/goldengate/internal/config"
	"github.com/goldengate/goldengate/internal/domain/policy"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <request-uuid>",
	Short: "Cancel a pending time-locked request",
	Long: `Cancel a pending time-locked request by its uuid.

The uuid is included in the notification sent when the request entered its
time lock. Cancellation is permanent: when the lock expires, the gateway
sees the cancellation and denies the request.

Cancellation works across processes only with the sqlite time lock store
(timelock.store: sqlite).`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.TimeLock.Store != "sqlite" {
		return errors.New("cancel requires the sqlite time lock store (timelock.store: sqlite)")
	}

	store, err := timelock.NewSQLiteStore(cfg.TimeLock.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	id := args[0]
	if err := store.Cancel(cmd.Context(), id); err != nil {
		if errors.Is(err, policy.ErrLockNotFound) {
			return fmt.Errorf("no pending request with uuid %s", id)
		}
		return err
	}
	fmt.Printf("Cancelled request %s\n", id)
	return nil
}
