package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/cmd/root"
	"github.com/denysvitali/carshare-anon/server"
)

var (
	host         string
	port         int
	cronSchedule string
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vehicle snapshot over HTTP and websocket",
	Long: `Keep a snapshot of the anonymous API up to date on a cron schedule and serve it.

Endpoints:
  GET /api/health
  GET /api/bundle
  GET /api/vehicles/nearest?n=10
  GET /api/vehicles/within?radius=500
  PUT /api/position   {"lat": .., "lon": ..}
  GET /ws             snapshot on connect and on every change`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := root.GetLogger()

		st, err := root.NewStore()
		if err != nil {
			return err
		}
		defer st.Close()

		srv := server.New(server.Config{Host: host, Port: port}, st, log)

		// A failed first refresh is reported through the error status
		if err := srv.Refresh(); err != nil {
			log.Warnf("Initial refresh failed: %v", err)
		}

		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		defer func() { _ = s.Shutdown() }()

		_, err = s.NewJob(
			gocron.CronJob(cronSchedule, false),
			gocron.NewTask(func() {
				if err := srv.Refresh(); err != nil {
					log.Errorf("Refresh failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		s.Start()

		errChan := make(chan error, 1)
		go func() { errChan <- srv.Start() }()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return err
		case <-sigChan:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	ServeCmd.Flags().StringVar(&host, "host", "127.0.0.1", "listen address")
	ServeCmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port")
	ServeCmd.Flags().StringVar(&cronSchedule, "cron", "*/5 * * * *", "refresh schedule")
	root.RootCmd.AddCommand(ServeCmd)
}
