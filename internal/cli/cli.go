// ============================================================================
// UWS Core — Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: cobra command tree for the UWS daemon (§6).
//
// Command Structure:
//   uwsd                      # Root command
//   ├── run                   # Start the service
//   │   └── --config, -c      # Config file path
//   ├── status                # Show registered lists and their job counts
//   ├── submit                # Submit a work-less job definition standalone
//   │   └── --file, -f        # JSON job definition
//   └── --version              # Version (ldflags-injected at build time)
//
// Grounding:
//   Adapts the teacher's internal/cli.BuildCLI/buildRunCommand/
//   buildStatusCommand/buildEnqueueCommand (cobra root + subcommands,
//   signal-driven graceful shutdown, box-drawing status output, a
//   local-submission mode that stands its own controller up when none is
//   running), retargeted from a worker-queue Controller onto a uws.Service
//   with its registered JobLists. Unlike the teacher's enqueue command,
//   submit never attaches a Work function read from JSON — arbitrary code
//   has no JSON form; it exercises list routing, parameter validation, and
//   the execution/destruction managers against jobs whose work is nil.
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmantele/vollt-uws/internal/backup"
	"github.com/gmantele/vollt-uws/internal/config"
	"github.com/gmantele/vollt-uws/internal/execution"
	"github.com/gmantele/vollt-uws/internal/joblist"
	"github.com/gmantele/vollt-uws/internal/logging"
	"github.com/gmantele/vollt-uws/internal/metrics"
	"github.com/gmantele/vollt-uws/internal/service"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var configFile string

// BuildCLI constructs the uwsd root command.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "uwsd",
		Short:   "uwsd: a standalone Universal Worker Service job-lifecycle daemon",
		Version: Version,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildStatusCommand())
	root.AddCommand(buildSubmitCommand())
	return root
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the UWS service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService()
		},
	}
}

// BuildService wires a service.Service, its registered JobLists, execution
// managers, and a default FileBackupManager from cfg. It returns the
// service and the metrics collector (nil if metrics are disabled) so
// callers (runService, tests) can start/stop them explicitly.
func BuildService(cfg *config.Config, logger *logging.SlogLogger) (*service.Service, *metrics.Collector) {
	var svc *service.Service

	svcCfg := service.Config{Logger: logger}
	if cfg.Backup.Dir != "" {
		svcCfg.BackupManager = backup.New(cfg.Backup.Dir, func() map[string][]uws.JobSnapshot {
			return svc.SnapshotsByList()
		})
	}
	svc = service.New(svcCfg)

	for _, lc := range cfg.Lists {
		var execMgr execution.Manager
		if lc.MaxRunning > 0 {
			execMgr = execution.NewBounded(lc.MaxRunning)
		} else {
			execMgr = execution.NewUnbounded()
		}
		l := joblist.New(joblist.Config{
			Name:         lc.Name,
			Policy:       parsePolicy(lc.Policy),
			ExecutionMgr: execMgr,
			Logger:       logger,
			Controllers:  buildControllers(lc),
		})
		svc.RegisterList(l)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}
	return svc, collector
}

// buildControllers turns a list's §6 job_parameters/executionDuration/
// destruction configuration into the ParameterController set every job
// created for that list is validated against (§4.2).
func buildControllers(lc config.ListConfig) map[string]uws.ParameterController {
	controllers := make(map[string]uws.ParameterController)

	if lc.DefaultExecutionDuration != "" || lc.MaxExecutionDuration != "" {
		defSec, err := uws.ParseDurationMillis(lc.DefaultExecutionDuration)
		if err != nil {
			defSec = 0
		}
		maxSec, err := uws.ParseDurationMillis(lc.MaxExecutionDuration)
		if err != nil {
			maxSec = 0
		}
		controllers["executionDuration"] = &uws.ExecutionDurationController{
			DefaultSec: defSec / 1000,
			MaxSec:     maxSec / 1000,
			Modifiable: true,
		}
	}

	if lc.DefaultDestructionInterval != "" || lc.MaxDestructionInterval != "" {
		defInterval, err := time.ParseDuration(lc.DefaultDestructionInterval)
		if err != nil {
			defInterval = 0
		}
		maxInterval, err := time.ParseDuration(lc.MaxDestructionInterval)
		if err != nil {
			maxInterval = 0
		}
		controllers["destruction"] = &uws.DestructionTimeController{
			DefaultInterval: defInterval,
			MaxInterval:     maxInterval,
			Modifiable:      true,
		}
	}

	for _, pc := range lc.JobParameters {
		if ctrl := buildParameterController(pc); ctrl != nil {
			controllers[pc.Name] = ctrl
		}
	}
	return controllers
}

func buildParameterController(pc config.ParameterConfig) uws.ParameterController {
	switch pc.Type {
	case "numeric":
		return &uws.NumericController{
			Name:       pc.Name,
			Default:    pc.DefaultNumeric,
			Min:        pc.Min,
			Max:        pc.Max,
			Modifiable: pc.Modifiable,
		}
	case "string":
		var pattern *regexp.Regexp
		if pc.Pattern != "" {
			pattern = regexp.MustCompile(pc.Pattern)
		}
		return &uws.StringController{
			Name:          pc.Name,
			Default:       pc.Default,
			Pattern:       pattern,
			CaseSensitive: pc.CaseSensitive,
			Modifiable:    pc.Modifiable,
		}
	default:
		return nil
	}
}

func parsePolicy(s string) joblist.DestructionPolicy {
	switch s {
	case "archive_on_date":
		return joblist.ArchiveOnDate
	case "always_archive":
		return joblist.AlwaysArchive
	default:
		return joblist.AlwaysDelete
	}
}

func runService() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("uws: %w", err)
	}

	logger := logging.NewSlogLogger(slog.Default())
	svc, collector := BuildService(cfg, logger)

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("uws: starting service: %w", err)
	}

	if collector != nil {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	slog.Info("uwsd started", "lists", svc.ListNames())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("uwsd shutting down")
	if err := svc.Stop(context.Background()); err != nil {
		return fmt.Errorf("uws: stopping service: %w", err)
	}
	return nil
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registered job lists and their job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func showStatus() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("uws: %w", err)
	}

	fmt.Println("UWS job lists:")
	for _, lc := range cfg.Lists {
		fmt.Printf("  - %s (policy=%s, max_running=%d)\n", lc.Name, lc.Policy, lc.MaxRunning)
	}
	if cfg.Backup.Dir != "" {
		fmt.Printf("Backups: %s (every %s)\n", cfg.Backup.Dir, cfg.Backup.Interval())
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("Metrics: enabled on :%d/metrics\n", cfg.Metrics.Port)
	}
	return nil
}

// submitRequest is the on-disk shape the submit command reads. There is no
// Work attached to jobs created this way — a job submitted through the CLI
// exercises list routing, parameter validation, and the execution/
// destruction managers, but actual work functions are wired in-process by
// whatever embeds this module (§1: the core has no generic job-payload
// format of its own).
type submitRequest struct {
	List       string         `json:"list"`
	RunID      string         `json:"run_id"`
	Parameters map[string]any `json:"parameters"`
}

func buildSubmitCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job definition into a list, running it standalone to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitJob(file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON job definition file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func submitJob(file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("uws: reading job file: %w", err)
	}
	var req submitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("uws: parsing job file: %w", err)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("uws: %w", err)
	}

	logger := logging.NewSlogLogger(slog.Default())
	svc, _ := BuildService(cfg, logger)

	l := svc.JobList(req.List)
	if l == nil {
		return fmt.Errorf("uws: no such list %q", req.List)
	}

	job, err := l.NewJob(uws.JobConfig{RunID: req.RunID, Parameters: req.Parameters})
	if err != nil {
		return fmt.Errorf("uws: constructing job: %w", err)
	}
	if err := l.Submit(job); err != nil {
		return fmt.Errorf("uws: submitting job: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for !job.IsFinished() && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	fmt.Printf("job %s finished in phase %s\n", job.ID(), job.Phase())
	return nil
}
