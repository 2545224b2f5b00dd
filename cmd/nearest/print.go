package nearest

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/denysvitali/carshare-anon/anonapi"
	"github.com/denysvitali/carshare-anon/proximity"
)

func formatDistance(d *int) string {
	if d == nil {
		return "-"
	}
	if *d >= 1000 {
		return fmt.Sprintf("%.1f km", float64(*d)/1000)
	}
	return fmt.Sprintf("%d m", *d)
}

// PrintVehicles prints vehicles as a table, with directions seen from ref.
func PrintVehicles(vehicles []anonapi.AvailableVehicle, ref anonapi.Position) {
	var rows [][]string
	for _, v := range vehicles {
		charging := ""
		if v.Status.IsCharging {
			charging = " ⚡"
		}
		rows = append(rows, []string{
			v.Description.Plate,
			v.Description.Model,
			formatDistance(v.Distance),
			proximity.Compass(proximity.Bearing(ref, v.Location.Position)),
			fmt.Sprintf("%.0f%%%s", v.Status.EnergyLevel, charging),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("PLATE", "MODEL", "DISTANCE", "DIR", "ENERGY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).PaddingLeft(1).PaddingRight(1)
			}
			baseStyle := lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
			if col >= 2 {
				return baseStyle.AlignHorizontal(lipgloss.Right)
			}
			return baseStyle
		}).
		Rows(rows...)

	fmt.Println(t)
}
