// Package main provides the hmse-projects binary: an administration CLI for
// HMSE project workspaces backed by a local directory tree or an S3
// compatible bucket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/WaterlinePL/hmse-projects/internal/config"
	"github.com/WaterlinePL/hmse-projects/internal/modelio"
	"github.com/WaterlinePL/hmse-projects/internal/observability"
	"github.com/WaterlinePL/hmse-projects/internal/project"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "hmse-projects",
		Short:         "Manage HMSE simulation project workspaces",
		Long:          "hmse-projects administers simulation project workspaces: metadata records,\nmodel and weather artifacts, zone masks, and finished-simulation archives.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (optional, overrides environment)")

	newService := func(ctx context.Context) (*project.Service, error) {
		cfg := config.FromEnv()
		if configPath != "" {
			if err := config.Load(configPath, cfg); err != nil {
				return nil, err
			}
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(log)
		backend, err := config.OpenStore(ctx, cfg.Store, log)
		if err != nil {
			return nil, err
		}
		return project.NewService(store.Instrument(backend, observability.NewMetrics()), log), nil
	}

	cmd.AddCommand(
		versionCmd(),
		createCmd(newService),
		listCmd(newService),
		getCmd(newService),
		deleteCmd(newService),
		archiveCmd(newService),
		soilCmd(newService),
		weatherCmd(newService),
		mapCmd(newService),
	)
	return cmd
}

type serviceFactory func(ctx context.Context) (*project.Service, error)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hmse-projects %s\n", version)
		},
	}
}

func createCmd(newService serviceFactory) *cobra.Command {
	var (
		lat, lon  float64
		startDate string
		spinUp    int
	)
	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			meta := domain.NewProjectMetadata(args[0])
			meta.Lat, meta.Lon = lat, lon
			meta.StartDate = startDate
			meta.SpinUp = spinUp
			return svc.Create(cmd.Context(), meta)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "model latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "model longitude")
	cmd.Flags().StringVar(&startDate, "start-date", "", "simulation start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&spinUp, "spin-up", 0, "soil-model output days to discard")
	return cmd
}

func listCmd(newService serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List project identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func getCmd(newService serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Print a project's metadata record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			meta, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

func deleteCmd(newService serviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and all of its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			return svc.Delete(cmd.Context(), args[0])
		},
	}
}

func archiveCmd(newService serviceFactory) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "archive <project-id>",
		Short: "Download the finished-simulation output as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			rc, err := svc.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()
			out := os.Stdout
			if output != "" {
				out, err = os.Create(output)
				if err != nil {
					return err
				}
				defer func() { _ = out.Close() }()
			}
			_, err = io.Copy(out, rc)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the archive to a file instead of stdout")
	return cmd
}

func soilCmd(newService serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soil",
		Short: "Manage soil-column models",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <project-id> <model-id> <archive.zip>",
		Short: "Stage a soil-column model archive and add it to a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			staging, err := modelio.StageArchiveFile(args[2])
			if err != nil {
				return err
			}
			defer func() { _ = os.RemoveAll(staging) }()
			return svc.AddSoilModel(cmd.Context(), args[0], args[1], staging)
		},
	}, &cobra.Command{
		Use:   "delete <project-id> <model-id>",
		Short: "Remove a soil-column model and its cross-references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			return svc.DeleteSoilModel(cmd.Context(), args[0], args[1])
		},
	})
	return cmd
}

func weatherCmd(newService serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Manage weather time series",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <project-id> <weather-id> <file.csv>",
		Short: "Add a weather time series to a project",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return svc.AddWeatherFile(cmd.Context(), args[0], args[1], f)
		},
	}, &cobra.Command{
		Use:   "delete <project-id> <weather-id>",
		Short: "Remove a weather time series and its cross-references",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			return svc.DeleteWeatherFile(cmd.Context(), args[0], args[1])
		},
	})
	return cmd
}

func mapCmd(newService serviceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Edit the cross-reference graph",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "shape-soil <project-id> <shape-id> <soil-model-id>",
		Short: "Feed a zone from a soil-column model",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			return svc.MapShapeToSoilModel(cmd.Context(), args[0], args[1], args[2])
		},
	}, &cobra.Command{
		Use:   "shape-value <project-id> <shape-id> <value>",
		Short: "Feed a zone from a manual numeric value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("manual value must be numeric: %w", err)
			}
			return svc.MapShapeToManualValue(cmd.Context(), args[0], args[1], value)
		},
	}, &cobra.Command{
		Use:   "soil-weather <project-id> <soil-model-id> <weather-id>",
		Short: "Drive a soil-column model from a weather time series",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context())
			if err != nil {
				return err
			}
			return svc.MapSoilModelToWeather(cmd.Context(), args[0], args[1], args[2])
		},
	})
	return cmd
}
