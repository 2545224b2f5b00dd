package watch

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/cmd/nearest"
	"github.com/denysvitali/carshare-anon/cmd/root"
)

var (
	lat, lon     float64
	count        int
	cronSchedule string
)

var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically list the vehicles closest to you",
	Long:  `Re-fetch the available vehicles on a cron schedule and print the closest ones each time.`,
	Example: `  # Every two minutes
  carshare-anon watch --cron "*/2 * * * *"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := root.GetLogger()

		st, err := root.NewStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pos := root.ReferencePosition(cmd, lat, lon)
		refresh := func() {
			if err := st.Update(pos); err != nil {
				log.Errorf("Refresh failed: %v", err)
				return
			}
			vehicles, err := st.Nearest(count)
			if err != nil {
				log.Errorf("Unable to read vehicles: %v", err)
				return
			}
			nearest.PrintVehicles(vehicles, pos)
		}

		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		defer func() { _ = s.Shutdown() }()

		_, err = s.NewJob(
			gocron.CronJob(cronSchedule, false),
			gocron.NewTask(refresh),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		refresh()

		fmt.Printf("Watching with cron: %s\n", cronSchedule)
		s.Start()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\nStopping...")
		return nil
	},
}

func init() {
	root.AddPositionFlags(WatchCmd, &lat, &lon)
	WatchCmd.Flags().IntVarP(&count, "count", "n", 5, "number of vehicles to list")
	WatchCmd.Flags().StringVar(&cronSchedule, "cron", "*/5 * * * *", "cron schedule")
	root.RootCmd.AddCommand(WatchCmd)
}
