package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/session"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List extraction rules and the hostnames they handle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		reg, err := session.NewRegistry(cfg, sites, slog.Default())
		if err != nil {
			return err
		}

		infos := reg.Rules()
		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(infos)
		}

		bold := color.New(color.Bold)
		fmt.Println(bold.Sprint("Site rules (first match wins):"))
		for _, info := range infos {
			if info.Generic {
				continue
			}
			printRule(info.Name, info.Disabled, strings.Join(info.Origins, ", "))
		}
		fmt.Println()
		fmt.Println(bold.Sprint("Generic rules (run on every capture):"))
		for _, info := range infos {
			if info.Generic {
				printRule(info.Name, info.Disabled, "")
			}
		}
		return nil
	},
}

func printRule(name string, disabled bool, origins string) {
	status := color.GreenString("on ")
	if disabled {
		status = color.RedString("off")
	}
	fmt.Printf("  %s %-12s %s\n", status, name, color.New(color.Faint).Sprint(origins))
}

func init() {
	rulesCmd.Flags().BoolVar(&jsonOut, "json", false, "print rules as JSON")
	rootCmd.AddCommand(rulesCmd)
}
