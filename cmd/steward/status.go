package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellblazer/steward/pkg/api"
	"github.com/hellblazer/steward/pkg/client"
	"github.com/hellblazer/steward/pkg/config"
	"github.com/hellblazer/steward/pkg/coordinator"
	"github.com/hellblazer/steward/pkg/provisioner"
	"github.com/hellblazer/steward/pkg/storage"
	"github.com/hellblazer/steward/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, pool, and worker status",
	Long: `Report daemon liveness, pool counts, vector-store health, and one row
per registered worker.

A running daemon is queried over its local API; otherwise the registry
is read directly.`,
	RunE: runStatus,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active worker sessions",
	Long:  `List the session metadata recorded for every claimed worker.`,
	RunE:  runSessions,
}

func init() {
	statusCmd.Flags().Bool("json", false, "Emit the machine-readable summary")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	st, running, err := fetchStatus(cfg)
	if err != nil {
		return err
	}

	if asJSON {
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	renderStatus(cfg, st, running)
	return nil
}

// fetchStatus queries the daemon API when one is alive, falling back to
// a direct registry read otherwise
func fetchStatus(cfg *config.Config) (*api.StatusResponse, bool, error) {
	pid, err := coordinator.ReadPidMarker(cfg.RunDir())
	if err == nil && coordinator.ProcessAlive(pid) {
		st, err := client.NewClient(cfg.API.Listen).Status()
		if err != nil {
			return nil, true, fmt.Errorf("daemon is running (pid %d) but its API at %s is unreachable: %v",
				pid, cfg.API.Listen, err)
		}
		return st, true, nil
	}

	st, err := offlineStatus(cfg)
	return st, false, err
}

// offlineStatus assembles the summary from the registry file. Only
// reached when no daemon holds the database lock.
func offlineStatus(cfg *config.Config) (*api.StatusResponse, error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %v", err)
	}
	defer store.Close()

	records, err := store.ListWorkers()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	st := &api.StatusResponse{
		Timestamp: now,
		Health:    "stopped",
		Service:   api.ServiceSummary{Supervised: cfg.Service.Binary != ""},
	}
	for _, record := range records {
		st.Workers = append(st.Workers, api.WorkerSummary{
			Name:      record.Name,
			Status:    string(record.Status),
			Age:       record.Age(now).Round(time.Second).String(),
			Tenant:    record.TenantHash,
			Project:   record.ProjectPath,
			CreatedAt: record.CreatedAt,
		})
		switch record.Status {
		case types.WorkerStatusWarm:
			st.Pool.Warm++
		case types.WorkerStatusBusy:
			st.Pool.Busy++
		}
	}
	return st, nil
}

func renderStatus(cfg *config.Config, st *api.StatusResponse, running bool) {
	if running {
		fmt.Printf("Daemon:   running (pid %d)\n", st.Pid)
	} else {
		fmt.Println("Daemon:   stopped")
	}
	fmt.Printf("Health:   %s\n", st.Health)

	switch {
	case !st.Service.Supervised:
		fmt.Println("Service:  externally managed")
	case st.Service.Running:
		fmt.Printf("Service:  running (%s)\n", st.Service.Endpoint)
	default:
		fmt.Println("Service:  not running")
	}

	poolLine := fmt.Sprintf("Pool:     %d warm / %d busy", st.Pool.Warm, st.Pool.Busy)
	if st.Pool.Maintaining {
		poolLine += " (maintaining)"
	}
	fmt.Println(poolLine)
	for service, state := range st.Breakers {
		fmt.Printf("Breaker:  %s=%s\n", service, state)
	}
	fmt.Println()

	if len(st.Workers) == 0 {
		fmt.Println("No workers registered")
		return
	}

	images := sessionImages(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORKER\tSTATUS\tAGE\tTENANT\tIMAGE")
	for _, worker := range st.Workers {
		image := images[worker.Name]
		if image == "" && worker.Status == string(types.WorkerStatusWarm) {
			// Warm workers are always launched from the configured image
			image = cfg.Worker.Image
		}
		if image == "" {
			image = "-"
		}
		tenant := worker.Tenant
		if tenant == "" {
			tenant = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", worker.Name, worker.Status, worker.Age, tenant, image)
	}
	_ = w.Flush()
}

// sessionImages maps worker names to the image their session launched.
// Session files are plain JSON and safe to read while the daemon runs.
func sessionImages(cfg *config.Config) map[string]string {
	reader, err := provisioner.New(nil, provisioner.Options{DataDir: cfg.DataDir})
	if err != nil {
		return nil
	}
	sessions, err := reader.ListSessions()
	if err != nil {
		return nil
	}
	images := make(map[string]string, len(sessions))
	for _, session := range sessions {
		images[session.Worker] = session.Image
	}
	return images
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	reader, err := provisioner.New(nil, provisioner.Options{DataDir: cfg.DataDir})
	if err != nil {
		return err
	}
	sessions, err := reader.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No active sessions")
		return nil
	}

	now := time.Now().UTC()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORKER\tIMAGE\tPROJECT\tPARENT\tAGE")
	for _, session := range sessions {
		project := session.ProjectPath
		if project == "" {
			project = "-"
		}
		parent := session.Parent
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			session.Worker, session.Image, project, parent,
			now.Sub(session.CreatedAt).Round(time.Second))
	}
	return w.Flush()
}
