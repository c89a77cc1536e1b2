package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/r3d91ll/consensus/pkg/api"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and websocket event stream",
		Long: `Start the HTTP server for driving batches remotely.

Endpoints:
  GET  /api/health
  POST /api/runs                      start a batch (body: simulation config)
  GET  /api/runs, /api/runs/:id
  POST /api/runs/:id/control          {"action": "pause|play|abort"}
  GET  /api/runs/:id/export/csv
  GET  /api/archive, /api/archive/:id
  GET  /ws                            update and lifecycle events, control

Examples:
  consensus serve
  consensus serve --host 0.0.0.0 --port 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("host") {
				e.cfg.Server.Host, _ = f.GetString("host")
			}
			if f.Changed("port") {
				e.cfg.Server.Port, _ = f.GetInt("port")
			}

			st, err := e.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			r := e.newRunner(st)
			hub := api.NewHub(r, e.logger)
			go hub.Run()
			defer hub.Stop()

			srvCfg := api.DefaultServerConfig()
			srvCfg.Host = e.cfg.Server.Host
			srvCfg.Port = e.cfg.Server.Port
			srvCfg.CORSOrigins = e.cfg.Server.CORSOrigins
			srv := api.NewServer(srvCfg, e.logger)

			handler := api.NewRunsHandler(api.RunsHandlerConfig{
				Runner:   r,
				Hub:      hub,
				Store:    st,
				Defaults: e.cfg.Simulation,
				CSV:      e.csvConfig(),
				Logger:   e.logger,
			})
			handler.RegisterRoutes(srv.Router())
			srv.Router().GET("/ws", api.NewWebSocketHandler(hub, srv.OriginChecker()).ServeHTTP)

			if err := srv.Start(); err != nil {
				return err
			}
			fmt.Fprintf(e.errOut, "Listening on http://%s (Ctrl+C to stop)\n", srv.Address())

			sig := make(chan os.Signal, 1)
			notifySignals(sig)
			select {
			case <-sig:
			case <-cmd.Context().Done():
			}
			fmt.Fprintln(e.errOut, "\nShutting down...")

			handler.Close()
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().String("host", "", "Interface to bind (overrides server.host)")
	cmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	return cmd
}
