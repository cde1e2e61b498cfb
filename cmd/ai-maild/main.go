package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/agent"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/db"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mail"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/mcp"
	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// Retention horizons for the one-shot cleanup mode.
const (
	cleanupMessageRetention = 30 * 24 * time.Hour
	cleanupAgentRetention   = 30 * 24 * time.Hour
)

var (
	dataDir   = flag.String("data-dir", "", "Directory holding the mailbox database (default $AI_MAIL_DATA_DIR or ~/.ai_mail)")
	agentName = flag.String("agent-name", "", "Explicit agent name (default $AI_AGENT_NAME or autodetected)")

	listAgents = flag.Bool("list-agents", false, "List registered agents and exit")
	showStats  = flag.Bool("stats", false, "Print mailbox statistics and exit")
	cleanup    = flag.Bool("cleanup", false, "Purge old archived messages and stale agents, then exit")
)

func main() {
	flag.Parse()

	// The stdio transport owns stdout, so all logging goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	log.SetOutput(os.Stderr)

	if err := run(logger); err != nil {
		logger.Error("daemon failed", "err", err)
		os.Exit(1)
	}
}

// run owns the store handle for the whole process lifetime, so the deferred
// close (and its WAL checkpoint) executes on every exit path, including
// startup failures.
func run(logger *slog.Logger) error {
	dir := *dataDir
	if dir == "" {
		var err error
		dir, err = db.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w",
				err)
		}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w",
			dir, err)
	}

	mailStore, err := store.Open(db.DBPath(dir), logger)
	if err != nil {
		return fmt.Errorf("failed to open mailbox database: %w", err)
	}
	defer func() {
		if err := mailStore.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	machineID := agent.MachineID()

	// One-shot informational modes run a single store call and exit.
	switch {
	case *listAgents:
		return runListAgents(ctx, mailStore)

	case *showStats:
		name, err := resolveBaseName(*agentName)
		if err != nil {
			return err
		}
		return runStats(ctx, mailStore, name, machineID)

	case *cleanup:
		return runCleanup(ctx, mailStore)
	}

	// Resolve identity: detected base name, then deterministic collision
	// suffixing against the registered roster.
	base, err := resolveBaseName(*agentName)
	if err != nil {
		return err
	}

	name, err := agent.EnsureUniqueName(ctx, mailStore, base)
	if err != nil {
		return fmt.Errorf("failed to allocate agent name: %w", err)
	}

	processInfo, _ := json.Marshal(map[string]any{
		"pid":      os.Getpid(),
		"platform": runtime.GOOS,
		"version":  mcp.ServerVersion,
	})

	err = mailStore.UpsertAgent(ctx, store.Agent{
		Name:        name,
		MachineID:   machineID,
		LastSeen:    time.Now().UTC(),
		Status:      store.StatusOnline,
		ProcessInfo: string(processInfo),
	})
	if err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}

	logger.Info("agent registered", "name", name, "data_dir", dir)

	heartbeat := agent.NewHeartbeat(
		mailStore, name, machineID, agent.DefaultHeartbeatInterval,
		logger,
	)
	heartbeat.Start()

	server := mcp.NewServer(mcp.Config{
		Storage:   mailStore,
		Service:   mail.NewService(mailStore, logger),
		AgentName: name,
		MachineID: machineID,
		Log:       logger,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	runErr := server.Run(ctx, &sdkmcp.StdioTransport{})

	// Graceful shutdown: stop the ticker and record the offline
	// transition before the deferred close checkpoints the WAL.
	stopCtx, stopCancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer stopCancel()

	if err := heartbeat.Stop(stopCtx); err != nil {
		logger.Warn("failed to mark agent offline", "err", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", runErr)
	}

	return nil
}

// resolveBaseName picks the agent base name from the flag, the environment,
// or detection heuristics.
func resolveBaseName(flagName string) (string, error) {
	if flagName != "" {
		name, ok := agent.SanitizeName(flagName)
		if !ok {
			return "", fmt.Errorf("invalid agent name %q", flagName)
		}
		return name, nil
	}

	return agent.DetectName(), nil
}

// runListAgents prints the agent roster.
func runListAgents(ctx context.Context, s store.Storage) error {
	agents, err := s.ListAgents(ctx, 0)
	if err != nil {
		return err
	}

	if len(agents) == 0 {
		fmt.Println("No agents registered")
		return nil
	}

	for _, a := range agents {
		fmt.Printf("%-30s %-8s last seen %s\n",
			a.Name, a.Status,
			a.LastSeen.UTC().Format(time.RFC3339))
	}

	return nil
}

// runStats prints mailbox counters and presence for the given agent.
func runStats(ctx context.Context, s store.Storage, name,
	machineID string) error {

	stats, err := s.Stats(ctx, name)
	if err != nil {
		return err
	}

	found, err := s.FindAgent(ctx, name, machineID)
	if err != nil {
		return err
	}

	fmt.Printf("Mailbox stats for %s\n", name)
	if found.IsSome() {
		a := found.UnwrapOr(store.Agent{})
		fmt.Printf("  presence:         %s (last seen %s)\n",
			a.Status, a.LastSeen.UTC().Format(time.RFC3339))
	}
	fmt.Printf("  inbox total:      %d\n", stats.TotalInbox)
	fmt.Printf("  inbox unread:     %d\n", stats.UnreadInbox)
	fmt.Printf("  unread urgent:    %d\n", stats.UnreadUrgent)
	fmt.Printf("  sent total:       %d\n", stats.SentTotal)
	fmt.Printf("  recent activity:  %d\n", stats.RecentActivity)
	fmt.Printf("  agents total:     %d\n", stats.AgentsTotal)
	fmt.Printf("  distinct threads: %d\n", stats.DistinctThreads)

	return nil
}

// runCleanup purges old archived messages and long-idle agents.
func runCleanup(ctx context.Context, s store.Storage) error {
	result, err := s.Cleanup(
		ctx, cleanupMessageRetention, cleanupAgentRetention,
	)
	if err != nil {
		return err
	}

	fmt.Printf("Purged %d archived message(s) and %d stale agent(s)\n",
		result.MessagesPurged, result.AgentsPurged)

	return nil
}
