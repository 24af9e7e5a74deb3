package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coolbeans/zonegen/pkg/config"
	"github.com/coolbeans/zonegen/pkg/output"
	"github.com/coolbeans/zonegen/pkg/pipeline"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "zonegen <records-dir> [world-save-dir] <output-dir>",
		Short: "Generate map overlay zones from land claim records",
		Long: `Zonegen reads the claim records of a land claim plugin and writes
zones.json, the layer file a map overlay script draws claims from.

With two arguments claims are written without elevations. With three, the
middle argument is a world save whose region files supply the surface height
at every claim corner.

Owner ids are resolved to player names through a name-history service and
cached in uuid.cache inside the output directory.

Example:
  zonegen ./GriefPreventionData/ClaimData ./map
  zonegen ./GriefPreventionData/ClaimData ./world ./map
  zonegen --config zonegen.yaml --index-db claims.db ./claims ./map`,
		Version:       version,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(cmd, args)
			if err != nil {
				return err
			}

			summary, err := pipeline.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("index-db", "", "Record each run's claims in this SQLite file")

	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(validateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <records-dir> [world-save-dir] <output-dir>",
		Short: "Regenerate zones whenever claim records change",
		Long: `Run once, then watch the records directory and every directory below
it. Record changes are debounced and trigger a new run. Stop with Ctrl-C.

Example:
  zonegen watch ./claims ./map
  zonegen watch --debounce 10s ./claims ./world ./map`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")

			opts, err := buildOptions(cmd, args)
			if err != nil {
				return err
			}

			return pipeline.Watch(cmd.Context(), opts, debounce, func(summary pipeline.Summary, err error) {
				if err != nil {
					opts.Logger.Printf("run failed: %v", err)
					return
				}
				fmt.Fprintln(cmd.OutOrStdout(), summary)
			})
		},
	}

	cmd.Flags().Duration("debounce", pipeline.DefaultDebounce, "Quiet period before a change triggers a run")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <zones.json>",
		Short: "Check a zones document against the zone schema",
		Long: `Validate an existing zones document and print the number of layers
and zones on every map.

Example:
  zonegen validate ./map/zones.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
			document, err := output.DecodeDocument(data)
			if err != nil {
				return err
			}

			mapNames := make([]string, 0, len(document))
			for mapName := range document {
				mapNames = append(mapNames, mapName)
			}
			sort.Strings(mapNames)

			out := cmd.OutOrStdout()
			for _, mapName := range mapNames {
				zoneCount := 0
				for _, layer := range document[mapName] {
					zoneCount += len(layer.Zones)
				}
				fmt.Fprintf(out, "%s: %d layers, %d zones\n", mapName, len(document[mapName]), zoneCount)
			}
			layers, zones := document.Counts()
			fmt.Fprintf(out, "OK: %d maps, %d layers, %d zones\n", len(document), layers, zones)
			return nil
		},
	}
}

// buildOptions reads the positional arguments and shared flags.
func buildOptions(cmd *cobra.Command, args []string) (pipeline.Options, error) {
	configPath, _ := cmd.Flags().GetString("config")
	indexPath, _ := cmd.Flags().GetString("index-db")

	recordsDir, saveDir, outputDir, err := splitArgs(args)
	if err != nil {
		return pipeline.Options{}, err
	}

	cfg := config.Default()
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return pipeline.Options{}, err
		}
	}

	return pipeline.Options{
		RecordsDir: recordsDir,
		SaveDir:    saveDir,
		OutputDir:  outputDir,
		Config:     cfg,
		IndexPath:  indexPath,
		Logger:     log.New(cmd.ErrOrStderr(), "", log.LstdFlags),
	}, nil
}

// splitArgs maps two or three positional arguments onto the records, save
// and output directories, checking that each one is a directory.
func splitArgs(args []string) (recordsDir, saveDir, outputDir string, err error) {
	switch len(args) {
	case 2:
		recordsDir, outputDir = args[0], args[1]
	case 3:
		recordsDir, saveDir, outputDir = args[0], args[1], args[2]
	default:
		return "", "", "", fmt.Errorf("expected 2 or 3 arguments, got %d", len(args))
	}

	for _, dir := range []string{recordsDir, saveDir, outputDir} {
		if dir == "" {
			continue
		}
		info, statErr := os.Stat(dir)
		if statErr != nil {
			return "", "", "", fmt.Errorf("%s: %w", dir, statErr)
		}
		if !info.IsDir() {
			return "", "", "", fmt.Errorf("%s is not a directory", dir)
		}
	}
	return recordsDir, saveDir, outputDir, nil
}
