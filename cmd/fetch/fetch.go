package fetch

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/cmd/root"
	"github.com/denysvitali/carshare-anon/proximity"
)

var (
	lat, lon float64
	asJSON   bool
)

var FetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch everything the anonymous API exposes",
	Long: `Fetch models, options, parking areas, home zones, cities and available vehicles
in one pass and print a summary, or the whole bundle as JSON.`,
	Example: `  # Summary around the configured position
  carshare-anon fetch

  # Full bundle around a given position
  carshare-anon fetch --lat 49.2827 --lon -123.1207 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := root.GetClient()
		if client == nil {
			return fmt.Errorf("client not initialized")
		}

		pos := root.ReferencePosition(cmd, lat, lon)
		bundle, err := client.FetchAll(pos)
		if err != nil {
			return fmt.Errorf("failed to fetch: %w", err)
		}
		proximity.AnnotateAll(bundle.Vehicles, pos)
		proximity.SortByDistance(bundle.Vehicles)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(bundle)
		}

		printSummary(bundle)
		return nil
	},
}

func init() {
	root.AddPositionFlags(FetchCmd, &lat, &lon)
	FetchCmd.Flags().BoolVar(&asJSON, "json", false, "print the whole bundle as JSON")
	root.RootCmd.AddCommand(FetchCmd)
}

func count(v any) int {
	switch c := v.(type) {
	case []anonapi.VehicleModel:
		return len(c)
	case []anonapi.Option:
		return len(c)
	case []anonapi.ParkingArea:
		return len(c)
	case []anonapi.Homezone:
		return len(c)
	case []anonapi.City:
		return len(c)
	case []anonapi.AvailableVehicle:
		return len(c)
	}
	return 0
}

func printSummary(bundle *anonapi.Bundle) {
	var rows [][]string
	for i, c := range bundle.Collections() {
		rows = append(rows, []string{anonapi.DataNames[i], fmt.Sprintf("%d", count(c))})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("COLLECTION", "COUNT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).PaddingLeft(1).PaddingRight(1)
			}
			baseStyle := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if col == 1 {
				return baseStyle.AlignHorizontal(lipgloss.Right)
			}
			return baseStyle
		}).
		Rows(rows...)

	fmt.Println(t)
	for _, city := range bundle.Cities {
		fmt.Printf("City: %s (%s)\n", city.Name, city.ID)
	}
}
