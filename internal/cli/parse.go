package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vsniff/internal/core/capture"
	"github.com/guiyumin/vsniff/internal/core/config"
	"github.com/guiyumin/vsniff/internal/core/extractor"
	"github.com/guiyumin/vsniff/internal/core/media"
	"github.com/guiyumin/vsniff/internal/core/session"
)

var parseRequestURL string

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Run the extraction rules on a saved response body",
	Long: `Run the extraction rules on a response body saved from the browser's
network panel, as if it had been captured from --url. Use - to read stdin.

Examples:
  vsniff parse player.json --url https://www.youtube.com/youtubei/v1/player
  curl -s https://cdn.example/master.m3u8 | vsniff parse - --url https://cdn.example/master.m3u8`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readBody(args[0])
		if err != nil {
			return err
		}

		cfg := config.LoadOrDefault()
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		reg, err := session.NewRegistry(cfg, sites, slog.Default())
		if err != nil {
			return err
		}

		outcomes := parseBody(reg, parseRequestURL, body)
		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(outcomeReport(outcomes))
		}

		for _, out := range outcomes {
			switch {
			case out.Err != nil:
				fmt.Printf("  %s %s: %v\n", color.RedString("✗"), out.Rule, out.Err)
			case len(out.Candidates) == 0:
				fmt.Printf("  %s %s: no match\n", color.New(color.Faint).Sprint("-"), out.Rule)
			default:
				fmt.Printf("  %s %s: %d candidates\n", color.GreenString("✓"), out.Rule, len(out.Candidates))
			}
		}
		printCandidates(os.Stdout, extractor.Candidates(outcomes))
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseRequestURL, "url", "u", "", "URL the body was fetched from")
	parseCmd.Flags().BoolVar(&jsonOut, "json", false, "print rule outcomes as JSON")
	parseCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(parseCmd)
}

func readBody(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, capture.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > capture.MaxBodyBytes {
		return "", capture.ErrBodyTooLarge
	}
	return string(data), nil
}

type ruleOutcome struct {
	Rule       string            `json:"rule"`
	Generic    bool              `json:"generic"`
	Candidates []media.Candidate `json:"candidates"`
	Error      string            `json:"error,omitempty"`
}

func outcomeReport(outcomes []extractor.Outcome) []ruleOutcome {
	report := make([]ruleOutcome, 0, len(outcomes))
	for _, out := range outcomes {
		r := ruleOutcome{Rule: out.Rule, Generic: out.Generic, Candidates: out.Candidates}
		if out.Err != nil {
			r.Error = out.Err.Error()
		}
		report = append(report, r)
	}
	return report
}

// parseBody dispatches body as an exchange fetched from requestURL
func parseBody(reg *extractor.Registry, requestURL, body string) []extractor.Outcome {
	return reg.Dispatch(capture.Exchange{
		RequestURL:  requestURL,
		ResolvedURL: requestURL,
		Hostname:    media.Hostname(requestURL),
		BodyText:    body,
	})
}
