package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
	"github.com/jbctechsolutions/intent-router/mcp"
	"github.com/jbctechsolutions/intent-router/router"
	"github.com/jbctechsolutions/intent-router/telemetry"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "intent-router",
		Short: "Offline-first support intent router",
		Long: "Classifies free-text support requests into named intents, degrading\n" +
			"deterministically to a regex fallback when the primary model is unavailable.",
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "directory containing router.yaml")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildService loads config and wires the service with every configured
// telemetry backend. The returned cleanup closes persistent sinks.
func buildService() (*router.Service, *config.Config, *telemetry.Collector, func(), error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var sinks []telemetry.Sink
	var closers []func()

	sinks = append(sinks, telemetry.NewLogSink(cfg.ComplianceLogContext))

	var collector *telemetry.Collector
	if cfg.Telemetry.SQLitePath != "" {
		collector, err = telemetry.NewCollector(cfg.Telemetry.SQLitePath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("opening telemetry store: %w", err)
		}
		sinks = append(sinks, collector)
		closers = append(closers, func() { collector.Close() })
	}

	if len(cfg.Telemetry.KafkaBrokers) > 0 {
		publisher := telemetry.NewPublisher(cfg.Telemetry.KafkaBrokers, cfg.Telemetry.KafkaTopic)
		sinks = append(sinks, publisher)
		closers = append(closers, func() { publisher.Close() })
	}

	svc, err := router.NewService(cfg, &router.ServiceOptions{
		Sink: telemetry.NewMultiSink(sinks...),
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return svc, cfg, collector, cleanup, nil
}

func routeCmd() *cobra.Command {
	var offline bool
	var requestID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "route [text]",
		Short: "Classify a single support request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			if requestID == "" {
				requestID = uuid.NewString()
			}

			output, err := svc.Route(cmd.Context(), strings.Join(args, " "), &router.RouteOptions{
				RequestID:       requestID,
				OfflineOverride: offline,
			})
			if err != nil {
				return err
			}
			return printOutput(cmd, output, asJSON)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "force the deterministic fallback classifier")
	cmd.Flags().StringVar(&requestID, "request-id", "", "correlation token (generated when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw output record as JSON")
	return cmd
}

func batchCmd() *cobra.Command {
	var offline bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify one request per stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			var items []any
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line != "" {
					items = append(items, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			if len(items) == 0 {
				return fmt.Errorf("no requests on stdin")
			}

			outputs, err := svc.RouteBatch(cmd.Context(), items, offline)
			if err != nil {
				return err
			}
			for _, output := range outputs {
				if err := printOutput(cmd, output, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "force the deterministic fallback classifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw output records as JSON lines")
	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text]",
		Short: "Detect the language of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detected := language.NewDetector().Detect(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "Language: %s\nConfidence: %.2f\nSource: %s\n",
				detected.Code, detected.Confidence, detected.Source)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var intent string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate routing decision statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if cfg.Telemetry.SQLitePath == "" {
				return fmt.Errorf("telemetry.sqlite_path is not configured")
			}

			collector, err := telemetry.NewCollector(cfg.Telemetry.SQLitePath)
			if err != nil {
				return err
			}
			defer collector.Close()

			stats, err := collector.GetStats(intent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total Decisions: %d\n", stats.TotalDecisions)
			fmt.Fprintf(out, "Fallback Count: %d\n", stats.FallbackCount)
			fmt.Fprintln(out, "By Intent:")
			for name, count := range stats.ByIntent {
				fmt.Fprintf(out, "  %s: %d\n", name, count)
			}
			fmt.Fprintln(out, "By Language:")
			for name, count := range stats.ByLanguage {
				fmt.Fprintf(out, "  %s: %d\n", name, count)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&intent, "intent", "", "scope the total count to one intent")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the router over the Model Context Protocol on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, collector, cleanup, err := buildService()
			if err != nil {
				return err
			}
			defer cleanup()

			log.Printf("mcp: serving intent router %s on stdio", cfg.RouterVersion)
			return mcp.NewServer(svc, language.NewDetector(), collector).Start()
		},
	}
}

func printOutput(cmd *cobra.Command, output *router.Output, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		data, err := json.Marshal(output)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Intent: %s\n", output.Intent)
	fmt.Fprintf(out, "Confidence: %.2f\n", output.Confidence)
	fmt.Fprintf(out, "Language: %s\n", output.Language)
	fmt.Fprintf(out, "Fallback Used: %v\n", output.FallbackUsed)
	fmt.Fprintf(out, "Reasoning: %s\n", output.Reasoning)
	fmt.Fprintf(out, "Router Version: %s\n", output.RouterVersion)
	return nil
}
