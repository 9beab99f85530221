package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/halcyonhq/aide/internal/agent"
	"github.com/halcyonhq/aide/internal/bootstrap"
	"github.com/halcyonhq/aide/internal/bus"
	"github.com/halcyonhq/aide/internal/channels"
	"github.com/halcyonhq/aide/internal/config"
	"github.com/halcyonhq/aide/internal/cron"
	"github.com/halcyonhq/aide/internal/gateway"
	"github.com/halcyonhq/aide/internal/heartbeat"
	"github.com/halcyonhq/aide/internal/memory"
	"github.com/halcyonhq/aide/internal/procs"
	"github.com/halcyonhq/aide/internal/security"
	"github.com/halcyonhq/aide/internal/sessions"
)

// resyncInterval is how often the indexer checks its dirty bit after a
// filesystem event.
const resyncInterval = 5 * time.Second

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the assistant daemon (dispatch loop, cron, heartbeats)",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("gateway.config_failed", "error", err)
		os.Exit(1)
	}
	workspace := cfg.Security.Workspace
	dataDir := cfg.Security.DataDir

	if _, err := bootstrap.EnsureWorkspace(workspace, dataDir); err != nil {
		slog.Error("gateway.bootstrap_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Memory index.
	vstore, err := memory.OpenSQLite(filepath.Join(dataDir, "memory.db"))
	if err != nil {
		slog.Error("gateway.memory_open_failed", "error", err)
		os.Exit(1)
	}
	defer vstore.Close()

	embedder := memory.HashEmbedder{}
	indexer := memory.NewIndexer(vstore, embedder, cfg.Memory.Search.ChunkTokens, cfg.Memory.Search.ChunkOverlap)
	if err := indexer.SyncFiles(ctx, markdownFiles(workspace)); err != nil {
		slog.Warn("gateway.initial_sync_failed", "error", err)
	}
	if err := memory.WatchDir(ctx, workspace, indexer.MarkDirty); err != nil {
		slog.Warn("gateway.watch_failed", "error", err)
	}
	go func() {
		ticker := time.NewTicker(resyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := indexer.SyncIfDirty(ctx, markdownFiles(workspace)); err != nil {
					slog.Warn("gateway.resync_failed", "error", err)
				}
			}
		}
	}()

	// Dispatch core.
	queue := bus.NewQueue(cfg.Gateway.MaxQueueSize)
	router := bus.NewRouter()
	terminal := channels.NewTerminal(queue, os.Stdin, os.Stdout)
	router.Register(terminal)

	if err := cfg.Validate(router.Names()); err != nil {
		slog.Error("gateway.config_invalid", "error", err)
		os.Exit(1)
	}

	sessStore := sessions.NewStore(dataDir)
	opts := agent.BuildOptions(cfg, workspace, loadMemoryContext(workspace), nil, hookCommand())
	executor := agent.NewSubprocessExecutor(agentCommand())
	runner := agent.NewRunner(executor, sessStore, opts, workspace)

	dispatcher := gateway.NewDispatcher(queue, router, runner, sessStore, cfg)
	dispatcher.Start(ctx)

	// Asynchronous event plumbing: cron fires and background command
	// completions land in the buffer, then surface as heartbeat messages.
	events := heartbeat.NewEventBuffer()
	registry := procs.NewRegistry(events)

	flushEvents := func(sourceID string) {
		drained := events.Drain()
		if len(drained) == 0 {
			return
		}
		prompt := heartbeat.ResolvePrompt(drained, time.Now())
		if res := queue.Enqueue(bus.AdapterMessage{Source: bus.SourceHeartbeat, SourceID: sourceID, Text: prompt}); !res.Accepted {
			slog.Warn("gateway.event_prompt_dropped", "reason", res.Reason)
		}
	}

	cronStore := cron.NewStore(dataDir)
	timer := cron.NewTimer(cronStore, func(job cron.Job) {
		slog.Info("cron.job_fired", "job", job.Label, "id", job.ID)
		if command, ok := strings.CutPrefix(job.Payload.Text, "exec:"); ok {
			runBackgroundExec(registry, cfg.Security, workspace, strings.TrimSpace(command), func() { flushEvents("cron") })
			return
		}
		events.Enqueue(job.Payload.Text, heartbeat.EventCron)
		flushEvents("cron")
	})
	timer.Rearm()
	defer timer.Stop()
	if err := cron.WatchStore(ctx, cronStore, timer); err != nil {
		slog.Warn("gateway.cron_watch_failed", "error", err)
	}

	if cfg.Heartbeat.Enabled {
		start, end, _ := config.ParseActiveHours(cfg.Heartbeat.ActiveHours)
		scheduler := heartbeat.NewScheduler(cfg.Heartbeat.IntervalMinutes, start, end, func() {
			prompt := heartbeat.ResolvePrompt(events.Drain(), time.Now())
			if res := queue.Enqueue(bus.AdapterMessage{Source: bus.SourceHeartbeat, SourceID: "main", Text: prompt}); !res.Accepted {
				slog.Warn("gateway.heartbeat_dropped", "reason", res.Reason)
			}
		})
		scheduler.Start()
		defer scheduler.Stop()
	}

	if err := terminal.Start(ctx); err != nil {
		slog.Error("gateway.terminal_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway.started", "workspace", workspace, "data_dir", dataDir)
	<-ctx.Done()
	slog.Info("gateway.stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	terminal.Stop(shutdownCtx)
	dispatcher.Stop()
}

// runBackgroundExec starts a cron-scheduled shell command after passing
// it through the bash gate. Completion lands in the process registry,
// which pushes an exec event for the next heartbeat.
func runBackgroundExec(registry *procs.Registry, sec config.SecurityConfig, workspace, command string, onExit func()) {
	if decision := security.BashGate(command, sec); !decision.Allow {
		slog.Warn("cron.exec_blocked", "command", command, "reason", decision.Reason)
		return
	}

	c := exec.Command("sh", "-c", command)
	c.Dir = workspace
	var output bytes.Buffer
	c.Stdout = &output
	c.Stderr = &output
	if err := c.Start(); err != nil {
		slog.Warn("cron.exec_start_failed", "command", command, "error", err)
		return
	}

	id := registry.Add(c.Process.Pid, command)
	go func() {
		c.Wait()
		registry.AppendOutput(id, output.String())
		registry.SetExited(id, c.ProcessState.ExitCode())
		onExit()
	}()
}

// markdownFiles lists the memory corpus: every .md under the workspace,
// skipping dot-directories.
func markdownFiles(workspace string) []string {
	var paths []string
	filepath.WalkDir(workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); strings.HasPrefix(name, ".") && path != workspace {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

// loadMemoryContext returns MEMORY.md's content for the system prompt,
// or empty when absent.
func loadMemoryContext(workspace string) string {
	data, err := os.ReadFile(filepath.Join(workspace, bootstrap.MemoryFile))
	if err != nil {
		return ""
	}
	return string(data)
}

// agentCommand names the external agent binary the executor shells out
// to. Overridable for development.
func agentCommand() string {
	if v := os.Getenv("AIDE_AGENT_CMD"); v != "" {
		return v
	}
	return "claude"
}

// hookCommand builds the shell command the agent CLI runs as its
// PreToolUse hook: this binary's hidden hook subcommand, pinned to the
// same config the gateway loaded. Empty disables the hook rather than
// shipping a command that cannot resolve.
func hookCommand() string {
	exe, err := os.Executable()
	if err != nil {
		slog.Warn("gateway.hook_disabled", "error", err)
		return ""
	}
	return fmt.Sprintf("%q hook --config %q", exe, resolveConfigPath())
}
