package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory backend status",
	Long:  `Probe the configured conversation memory backends and print their status as JSON.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zl := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel)

	mgr, _, err := buildMemory(cmd.Context(), cfg, zl, false)
	if err != nil {
		return err
	}

	status := mgr.DescribeStatus(cmd.Context())

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
