package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/datasciencecampus/transport-network-performance/internal/model"
)

var gridRaster string

type gridSummary struct {
	Rows            int         `json:"rows"`
	Cols            int         `json:"cols"`
	ResolutionM     float64     `json:"resolution_meters"`
	Origin          model.Coord `json:"origin"`
	Cells           int         `json:"cells"`
	PopulatedCells  int         `json:"populated_cells"`
	TotalPopulation float64     `json:"total_population"`
	MaxPopulation   float64     `json:"max_population"`
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Summarise a population raster",
	RunE: func(cmd *cobra.Command, args []string) error {
		grid, err := loadGrid(gridRaster)
		if err != nil {
			return err
		}

		summary := gridSummary{
			Rows:            grid.Rows(),
			Cols:            grid.Cols(),
			ResolutionM:     grid.Resolution(),
			Origin:          grid.Origin(),
			Cells:           grid.NumCells(),
			TotalPopulation: grid.TotalPopulation(),
		}
		for id := 0; id < grid.NumCells(); id++ {
			pop := grid.Cell(id).Population
			if pop > 0 {
				summary.PopulatedCells++
			}
			if pop > summary.MaxPopulation {
				summary.MaxPopulation = pop
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	gridCmd.Flags().StringVar(&gridRaster, "raster", "", "population raster (ESRI ASCII grid, required)")
	_ = gridCmd.MarkFlagRequired("raster")
	rootCmd.AddCommand(gridCmd)
}
