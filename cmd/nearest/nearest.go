package nearest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/cmd/root"
	"github.com/denysvitali/carshare-anon/store"
)

var (
	lat, lon float64
	count    int
)

var NearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the available vehicles closest to you",
	Long: `Fetch the available vehicles and list the closest ones with their distance,
direction and energy level.`,
	Example: `  # The ten closest vehicles to the configured position
  carshare-anon nearest

  # The three closest vehicles to a given position
  carshare-anon nearest -n 3 --lat 49.2827 --lon -123.1207`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := root.NewStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pos := root.ReferencePosition(cmd, lat, lon)
		if err := st.Update(pos); err != nil {
			return fmt.Errorf("failed to fetch vehicles: %w", err)
		}

		vehicles, err := st.Nearest(count)
		if err != nil {
			return err
		}
		if len(vehicles) == 0 {
			fmt.Println("No vehicles available.")
			return nil
		}

		inZone, err := st.InHomezone(pos)
		if err != nil {
			return err
		}
		PrintVehicles(vehicles, pos)
		if !inZone {
			fmt.Println("Note: you are outside every home zone, trips cannot end here.")
		}
		return nil
	},
}

func init() {
	root.AddPositionFlags(NearestCmd, &lat, &lon)
	NearestCmd.Flags().IntVarP(&count, "count", "n", store.NearestCount, "number of vehicles to list")
	root.RootCmd.AddCommand(NearestCmd)
}
