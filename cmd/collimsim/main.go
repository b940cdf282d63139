// Command collimsim loads a collimator geometry and material set, runs a
// beam (and optionally scatter) simulation, and writes the results as CSV.
// Flag/output-table shape follows the teacher pack's main.go/output.go
// convention: one bool flag gates one named CSV file.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/arnegrid/collimeng/beam"
	"github.com/arnegrid/collimeng/buildup"
	"github.com/arnegrid/collimeng/engine"
	"github.com/arnegrid/collimeng/geometry"
	"github.com/arnegrid/collimeng/scatter"
	"github.com/arnegrid/collimeng/units"
)

// output is one named CSV file this command can write, gated by its own
// flag. rows is called only if saveFlag is set, after the simulation runs.
type output struct {
	saveFlag    *bool
	fileSuffix  string
	columnNames []string
	rows        func() [][]string
}

func main() {
	geometryFile := flag.String("geometry", "", "path to a collimator geometry JSON file (required)")
	materialsDir := flag.String("materials", "", "path to a directory of material TOML files (required)")
	buildupFile := flag.String("buildup", "", "path to a build-up factor TOML table (optional)")
	outPrefix := flag.String("out", "collimsim", "output file prefix")
	numRays := flag.Int("rays", 2000, "number of rays to trace")
	energyKeV := flag.Float64("energy", 1000, "monoenergetic photon energy, in keV")
	includeBuildup := flag.Bool("with-buildup", false, "apply build-up factor correction")
	compositionMethod := flag.String("composition", "", "multi-stage build-up composition method: kalos or last_material (default: kalos, or last_material when -scatter is set with -scatter-order=1)")

	comptonEnabled := flag.Bool("scatter", false, "also run the Compton scatter tracer")
	scatterOrder := flag.Int("scatter-order", 1, "maximum scatter order")
	scatterStepMm := flag.Float64("scatter-step-mm", 1.0, "scatter tracer step size, in mm")
	scatterCutoffKeV := flag.Float64("scatter-cutoff-kev", 5.0, "minimum scattered photon energy tracked, in keV")
	scatterSeed := flag.Uint64("scatter-seed", 1, "scatter tracer RNG seed")

	var profileBins, energyTableRows, sprRows [][]string
	outputs := map[string]output{
		"profile": {
			saveFlag:    flag.Bool("save-profile", true, "save the detector transmission profile"),
			fileSuffix:  "profile",
			columnNames: []string{"position_mm", "transmission", "transmission_no_buildup", "buildup_factor", "passed_aperture"},
			rows:        func() [][]string { return profileBins },
		},
		"energy-table": {
			saveFlag:    flag.Bool("save-energy-table", false, "save the per-material energy contribution table"),
			fileSuffix:  "energy_table",
			columnNames: []string{"material_id", "total_tau", "total_path_cm", "rays_affected"},
			rows:        func() [][]string { return energyTableRows },
		},
		"scatter": {
			saveFlag:    flag.Bool("save-scatter", false, "save the scatter-to-primary ratio profile (requires -scatter)"),
			fileSuffix:  "spr",
			columnNames: []string{"position_mm", "spr"},
			rows:        func() [][]string { return sprRows },
		},
	}
	flag.Parse()

	if *geometryFile == "" || *materialsDir == "" {
		fmt.Fprintln(os.Stderr, "usage: collimsim -geometry <file.json> -materials <dir> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	startTime := time.Now()

	geo, err := loadGeometry(*geometryFile)
	if err != nil {
		log.Fatalf("loading geometry: %v", err)
	}

	e, err := engine.Load(*materialsDir, *buildupFile)
	if err != nil {
		log.Fatalf("loading engine: %v", err)
	}

	cfg := beam.Config{
		NumRays:           *numRays,
		EnergyKeV:         units.KeV(*energyKeV),
		IncludeBuildup:    *includeBuildup,
		BuildupMethod:     buildup.GP,
		CompositionMethod: buildup.CompositionMethod(*compositionMethod),
	}
	if *comptonEnabled {
		// Feeds resolveCompositionMethod's max_scatter_order==1 default even
		// though the scatter tracer itself runs as a separate pass below.
		cfg.Compton = beam.ComptonConfig{Enabled: true, MaxScatterOrder: *scatterOrder}
	}

	ctx := context.Background()
	result, err := e.RunSimulation(ctx, geo, cfg, nil)
	if err != nil {
		log.Fatalf("running simulation: %v", err)
	}
	fmt.Printf("beam simulation %s: %d rays, FWHM %.2f mm, flatness %.2f%%\n",
		result.ID, result.NumRays, result.Quality.FWHMMm, result.Quality.FlatnessPct)

	profileBins = make([][]string, 0, len(result.Bins))
	for _, b := range result.Bins {
		profileBins = append(profileBins, []string{
			strconv.FormatFloat(b.PositionMm, 'f', -1, 64),
			strconv.FormatFloat(b.Transmission, 'g', -1, 64),
			strconv.FormatFloat(b.TransmissionNoBuildup, 'g', -1, 64),
			strconv.FormatFloat(b.BuildupFactor, 'g', -1, 64),
			strconv.FormatBool(b.PassedAperture),
		})
	}
	energyTableRows = make([][]string, 0, len(result.EnergyTable))
	for _, c := range result.EnergyTable {
		energyTableRows = append(energyTableRows, []string{
			c.MaterialID,
			strconv.FormatFloat(c.TotalTau, 'g', -1, 64),
			strconv.FormatFloat(float64(c.TotalPathCm), 'g', -1, 64),
			strconv.Itoa(c.RaysAffected),
		})
	}

	if *comptonEnabled {
		scatterCfg := beam.ComptonConfig{
			Enabled:            true,
			StepSizeMm:         *scatterStepMm,
			MinEnergyCutoffKeV: units.KeV(*scatterCutoffKeV),
			MaxScatterOrder:    *scatterOrder,
			Seed:               *scatterSeed,
		}
		scatterResult, err := e.RunScatter(ctx, geo, scatterCfg, *energyKeV, *numRays, &result, nil)
		if err != nil {
			log.Fatalf("running scatter trace: %v", err)
		}
		fmt.Printf("scatter trace: %d interactions, %d reaching detector\n",
			scatterResult.NumInteractions, scatterResult.NumReachingDetector)
		sprRows = sprRowsFrom(scatterResult)
	}

	for name, o := range outputs {
		if !*o.saveFlag {
			continue
		}
		if err := writeCSV(*outPrefix+"_"+o.fileSuffix+".csv", o.columnNames, o.rows()); err != nil {
			fmt.Fprintf(os.Stderr, "unable to save %s: %v\n", name, err)
			continue
		}
		fmt.Println(name + " saved")
	}

	fmt.Printf("elapsed: %v\n", time.Since(startTime))
}

func loadGeometry(path string) (geometry.CollimatorGeometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.CollimatorGeometry{}, err
	}
	defer f.Close()
	var geo geometry.CollimatorGeometry
	if err := json.NewDecoder(f).Decode(&geo); err != nil {
		return geometry.CollimatorGeometry{}, fmt.Errorf("decoding %q: %w", path, err)
	}
	return geo, nil
}

func sprRowsFrom(res scatter.Result) [][]string {
	rows := make([][]string, 0, len(res.SPRProfile))
	for i, spr := range res.SPRProfile {
		rows = append(rows, []string{
			strconv.FormatFloat(res.SPRPositionsMm[i], 'f', -1, 64),
			strconv.FormatFloat(spr, 'g', -1, 64),
		})
	}
	return rows
}

func writeCSV(path string, columnNames []string, dataRows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(columnNames); err != nil {
		return err
	}
	if err := w.WriteAll(dataRows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
