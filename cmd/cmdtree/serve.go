// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmdtree/cmdtree/internal/dispatch"
	"github.com/cmdtree/cmdtree/internal/issue"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(app *App) *cobra.Command {
	var (
		listen  string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live tree over HTTP",
		Long: `Compile the documents and serve the live tree over HTTP. Unless --no-watch
is given, the tree is reloaded whenever the documents change.

Routes:
  GET  /healthz           liveness and current generation
  GET  /tree              the whole tree
  GET  /tree/{path}       one node
  GET  /suggest?input=    completions
  POST /dispatch          execute {"input": "...", "level": 0}
  POST /reload            reload the documents now
  GET  /metrics           Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var extra map[string]any
			if cmd.Flags().Changed("listen") {
				extra = map[string]any{"server.listen": listen}
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			s, err := app.open(ctx, extra, live.WithMetrics(live.NewMetrics(reg)))
			if err != nil {
				return app.printError(cmd, err, 1)
			}
			defer s.Close()

			host := newEchoHost(s.manager, app.stdout)
			if report, err := host.Reload(ctx); err != nil {
				if !issue.IsRejection(err) {
					return app.printError(cmd, err, 1)
				}
				renderDiagnostics(app.stderr, report)
				s.logger.Warn("serving the empty tree until the documents are fixed")
			}

			d := dispatch.New(host,
				dispatch.WithModifiers(s.manager.Bindings()),
				dispatch.WithLogger(s.logger),
				dispatch.WithMetrics(dispatch.NewMetrics(reg)))

			srvCfg := server.DefaultConfig()
			srvCfg.Listen = s.cfg.Server.Listen
			srv := server.New(srvCfg, host, d,
				server.WithLogger(s.logger),
				server.WithGatherer(reg))
			if err := srv.Start(ctx); err != nil {
				return app.printError(cmd, err, 1)
			}
			fmt.Fprintf(app.stdout, "%s serving generation %d on %s\n",
				successIcon, host.Current().Generation(), PathStyle.Render(srv.URL()))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(srv.Wait)
			g.Go(func() error {
				<-gctx.Done()
				return srv.Stop()
			})
			if !noWatch {
				g.Go(func() error {
					return s.follow(gctx, host.ReloadOnChange)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return app.printError(cmd, err, 1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides server.listen)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload when the documents change")
	return cmd
}
