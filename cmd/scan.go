package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/crawl"
	"github.com/pyneda/sukyan/pkg/discovery"
	"github.com/pyneda/sukyan/pkg/eventbus"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scan/control"
	"github.com/pyneda/sukyan/pkg/scan/orchestrator"
	"github.com/pyneda/sukyan/pkg/scanners"
	"github.com/pyneda/sukyan/pkg/selector"
	"github.com/pyneda/sukyan/pkg/store"
)

var (
	scanStartURL string
	scanEmail    string
	scanCompany  string
	scanPolicy   string
	scanScanners []string
	scanMaxPages int
	scanMaxDepth int
	scanSimulate bool
)

// scanCmd is the CLI's one collaborator surface onto the orchestrator: it
// builds a ScanRequest from flags, runs it synchronously to completion in
// this process, and prints the resulting AggregatedResult. It does not
// touch the HTTP API; it builds its own short-lived session store and
// event bus, which are discarded when the command exits.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single accessibility scan and print its result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanStartURL == "" {
			fmt.Fprintln(os.Stderr, "--url is required")
			os.Exit(2)
		}

		scannerIDs := make([]model.ScannerID, 0, len(scanScanners))
		for _, s := range scanScanners {
			scannerIDs = append(scannerIDs, model.ScannerID(s))
		}
		if len(scannerIDs) == 0 {
			fmt.Fprintln(os.Stderr, "at least one --scanner is required")
			os.Exit(2)
		}

		req := model.ScanRequest{
			StartURL: scanStartURL,
			Company:  scanCompany,
			Email:    scanEmail,
			Scanners: scannerIDs,
			Policy:   model.CompliancePolicy(scanPolicy),
			MaxPages: scanMaxPages,
			MaxDepth: scanMaxDepth,
			Simulate: scanSimulate,
		}

		result, state, err := runScanOnce(req)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			if state == model.ScanStateFailed {
				os.Exit(1)
			}
			os.Exit(2)
		}

		fmt.Fprintln(os.Stderr, colorizeSummary(result))

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Println(string(out))

		if state == model.ScanStateCompleted {
			os.Exit(0)
		}
		os.Exit(1)
		return nil
	},
}

func runScanOnce(req model.ScanRequest) (model.AggregatedResult, model.ScanState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	bus := eventbus.New(eventbus.DefaultConfig())
	sessionStore := store.New(store.DefaultConfig())
	defer sessionStore.Close()
	sessionStore.SetBus(bus)
	controlReg := control.NewRegistry()

	registry := scanners.NewRegistry()
	if req.Simulate {
		for _, id := range req.Scanners {
			registry.Register(id, scanners.NewSimulateDriver(id))
		}
	}

	scanID := fmt.Sprintf("cli-%s", lib.GenerateRandomString(8))
	sessionStore.CreateScan(scanID, req)

	runner := discovery.New(sessionStore, bus)
	pages, _ := runner.Run(ctx, scanID, crawl.Config{
		StartURL: req.StartURL,
		MaxPages: req.MaxPages,
		MaxDepth: req.MaxDepth,
	})
	if len(pages) == 0 {
		return model.AggregatedResult{}, model.ScanStateFailed, fmt.Errorf("discovery found no pages under %s", req.StartURL)
	}

	selection := selector.Select(pages, req.Policy, selector.Config{
		MaxPages:     viper.GetInt("selector.max_pages_per_scan"),
		PerTypeQuota: viper.GetInt("selector.per_type_quota"),
	})

	orch := orchestrator.New(orchestrator.DefaultConfig(), registry, controlReg, bus)
	outcomes, result, _ := orch.Run(ctx, orchestrator.RunRequest{
		ScanID:      scanID,
		Selection:   selection,
		Scanners:    req.Scanners,
		Credentials: req.Credentials,
	})

	state := model.ScanStateCompleted
	for _, o := range outcomes {
		if o.Status == model.OutcomeSucceeded {
			return result, state, nil
		}
	}
	return result, model.ScanStateFailed, nil
}

// colorizeSummary renders a one-line, color-coded score summary for the
// terminal: green for compliant, yellow for partially compliant, red
// otherwise.
func colorizeSummary(result model.AggregatedResult) string {
	color := lib.Red
	switch result.ComplianceLevel {
	case model.ComplianceCompliant:
		color = lib.Green
	case model.CompliancePartiallyCompliant:
		color = lib.Yellow
	}
	return lib.Colorize(fmt.Sprintf("score %.0f/100 (%s) - %d finding(s)", result.Score, result.ComplianceLevel, len(result.Findings)), color)
}

func init() {
	scanCmd.Flags().StringVar(&scanStartURL, "url", "", "URL to scan")
	scanCmd.Flags().StringVar(&scanEmail, "email", "", "Contact email for the scan")
	scanCmd.Flags().StringVar(&scanCompany, "company", "", "Company name for the scan report")
	scanCmd.Flags().StringVar(&scanPolicy, "policy", string(model.PolicyWCAG21AA), "Compliance policy to score against")
	scanCmd.Flags().StringSliceVar(&scanScanners, "scanner", []string{string(model.ScannerAxe)}, "Scanner to run, repeatable")
	scanCmd.Flags().IntVar(&scanMaxPages, "max-pages", 0, "Maximum pages to discover (capped by crawl.HardMaxPages)")
	scanCmd.Flags().IntVar(&scanMaxDepth, "max-depth", 0, "Maximum crawl depth (capped by crawl.HardMaxDepth)")
	scanCmd.Flags().BoolVar(&scanSimulate, "simulate", false, "Use deterministic simulated scanner output instead of real drivers")

	rootCmd.AddCommand(scanCmd)
}
