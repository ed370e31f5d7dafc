package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dverhagen/pharmsync/internal/checkpoint"
	"github.com/dverhagen/pharmsync/internal/models"
)

var statusCheckpointPath string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the phase table and failed items of a checkpoint",
	Long: `Status reads a checkpoint file and prints each phase's progress plus
any failed work items, without contacting the remote store.

Examples:
  pharmsync status
  pharmsync status --checkpoint work_state.json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusCheckpointPath, "checkpoint", "work_state.json", "checkpoint file path")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ckpt := checkpoint.NewStore(statusCheckpointPath)
	state, err := ckpt.Load()
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return fmt.Errorf("no checkpoint at %s", statusCheckpointPath)
		}
		return err
	}

	fmt.Printf("Run %s, dataset %q (id %d)\n", state.RunID, state.DatasetTag, state.DatasetID)
	fmt.Printf("Created %s, updated %s\n", state.CreatedAt.Format("2006-01-02 15:04:05"), state.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Files: %d total, %d with screenshot\n\n", state.TotalFiles, state.TotalImages)

	fmt.Println("Phases:")
	for _, phase := range models.Phases {
		ps := state.Phase(phase)
		fmt.Printf("  %-10s %-10s processed=%d completed=%d failed=%d skipped=%d (%.1fs)\n",
			phase, ps.Status, ps.Processed, ps.Completed, ps.Failed, ps.Skipped, ps.DurationSeconds)
	}

	if len(state.FailedItemIDs) > 0 {
		fmt.Printf("\nFailed items (%d):\n", len(state.FailedItemIDs))
		for _, item := range state.Items {
			if item.Status != models.ItemFailed {
				continue
			}
			msg := ""
			if item.LastError != nil {
				msg = *item.LastError
			}
			fmt.Printf("  %s: %s\n", item.WorkID, msg)
		}
	}

	if phase, ok := state.FirstIncompletePhase(); ok {
		fmt.Printf("\nNext resume re-enters phase: %s\n", phase)
	} else {
		fmt.Println("\nAll phases completed.")
	}
	return nil
}
