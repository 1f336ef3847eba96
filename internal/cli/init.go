package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create vsniff config file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists() && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.SavePath())
		}
		if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}

		fmt.Printf("Saved %s\n", config.SavePath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
