package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Shunseii/bahar-sub001/internal/dashboard"
	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "data",
	Short:   "Pull and push changes with the remote primary",
	Long: `Run one sync cycle against the libSQL primary: pull remote frames,
push local ones, and rebuild the search index if the data changed.

Only available with database.mode: replica.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("🔄"), cfg.Database.ReplicaURL)
		res, err := a.Sync.Sync(ctx)
		if errors.Is(err, store.ErrNoReplica) {
			fatalf("database.mode is %q; sync needs a replica", cfg.Database.Mode)
		}
		if err != nil {
			fatalf("%v", err)
		}

		if jsonOutput {
			outputJSON(res)
			return
		}
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), res.Duration.Round(time.Millisecond))
		fmt.Printf("   Entries: %d\n", res.Entries)
		if res.Changed {
			fmt.Printf("   Changed: watermark %d → %d\n", res.WatermarkBefore, res.WatermarkAfter)
		} else {
			fmt.Printf("   Changed: no\n")
		}
	},
}

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "data",
	Short:   "Sync periodically and import snapshots dropped into the inbox",
	Long: `Run in the foreground until interrupted:

  - every daemon.sync_interval, run a sync cycle (replica mode only)
  - watch daemon.inbox_dir and import every *.json file dropped there,
    moving it to processed/ or failed/ afterwards
  - with --dashboard, serve the live dashboard websocket as well

Examples:
  bahar daemon
  bahar daemon --dashboard --port 8765`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("dashboard") {
			withDashboard = cfg.Dashboard.Enabled
		}
		if !cmd.Flags().Changed("port") {
			port = cfg.Dashboard.Port
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		d, err := a.NewDaemon()
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		if withDashboard {
			server, detach := a.NewDashboard(port)
			defer detach()
			startDashboard(server)
			defer stopDashboard(server)
		}

		fmt.Printf("%s Daemon running (inbox %s", ui.RenderAccent("🔄"), cfg.Daemon.InboxDir)
		if a.DB.HasReplica() {
			fmt.Printf(", sync every %v", cfg.Daemon.SyncInterval)
		}
		fmt.Println(")")
		fmt.Println("Press Ctrl+C to stop...")

		if err := d.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fatalf("daemon stopped: %v", err)
		}
		fmt.Println("\nDaemon stopped")
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve the live dashboard websocket",
	Long: `Start a WebSocket server that pushes change notifications and
dictionary statistics to connected clients.

WebSocket messages include:
- dataset_changed: bulk change (sync, import, delete-all)
- entries_changed: entries written locally
- sync_complete / sync_failed: outcome of a sync cycle
- rehydrate_complete: search index rebuilt
- stats: entry, index, due and backlog counts

Connect with a WebSocket client:
  ws://localhost:8765/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") {
			port = cfg.Dashboard.Port
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx)
		defer closeApp(a)

		server, detach := a.NewDashboard(port)
		defer detach()
		startDashboard(server)

		fmt.Println("\nPress Ctrl+C to stop...")
		<-ctx.Done()

		fmt.Println("\nShutting down dashboard server...")
		stopDashboard(server)
		fmt.Println("Dashboard server stopped")
	},
}

func startDashboard(server *dashboard.Server) {
	if err := server.Start(); err != nil {
		fatalf("failed to start dashboard: %v", err)
	}
	fmt.Printf("Dashboard server started on http://%s\n", server.Addr())
	fmt.Printf("WebSocket endpoint: ws://%s/ws\n", server.Addr())
	fmt.Printf("Health check: http://%s/health\n", server.Addr())
}

func stopDashboard(server *dashboard.Server) {
	if err := server.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
	}
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the dashboard (default dashboard.enabled)")
	daemonCmd.Flags().IntP("port", "p", 8765, "Dashboard port (default dashboard.port)")
	dashboardCmd.Flags().IntP("port", "p", 8765, "Port to listen on (default dashboard.port)")

	rootCmd.AddCommand(syncCmd, daemonCmd, dashboardCmd)
}
