package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cellmon/infra/uplink"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference uplink logging endpoint",
	RunE:  serveUplink,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8266", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func serveUplink(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := uplink.NewServerMock(uplink.ServerConfig{Address: serveAddr})
	return srv.Start(ctx)
}
