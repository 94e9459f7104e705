package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nconklindev/sheetstack/internal/logging"
	"github.com/nconklindev/sheetstack/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the concatenation pipeline over HTTP",
		Long: `Serve accepts multipart uploads on POST /api/concat (workbook download) and
POST /api/preview (JSON summary). Option flags become the defaults that form
fields can override per request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := a.options(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				a.settings.ListenAddr = addr
			}

			logger := logging.Console(cmd.ErrOrStderr(), a.settings.LogLevel)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(*a.settings, defaults, logger, reg).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to $SHEETSTACK_LISTEN_ADDR)")
	return cmd
}
