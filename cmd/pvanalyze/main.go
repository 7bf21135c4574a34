// pvanalyze runs one analysis over a plant dataset and prints the result
// as JSON, for use from scripts and during parameter tuning.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/helios-data/yield.report/internal/analysis"
	"github.com/helios-data/yield.report/internal/config"
	"github.com/helios-data/yield.report/internal/monitoring"
	"github.com/helios-data/yield.report/internal/plant"
)

func main() {
	var (
		datasetPath   = flag.String("dataset", "", "path to plant dataset JSON (required)")
		tuningPath    = flag.String("tuning", "", "path to tuning config JSON (optional)")
		mode          = flag.String("mode", "single_timestamp", "analysis mode: single_timestamp or max_vector_interval")
		timestamp     = flag.String("timestamp", "", "timestamp label for single_timestamp mode")
		intervalStart = flag.String("interval-start", "", "interval start label for max_vector_interval mode")
		intervalEnd   = flag.String("interval-end", "", "interval end label for max_vector_interval mode")
		kdistance     = flag.Bool("kdistance", false, "print the DBSCAN k-distance curve instead of running the analysis")
		quiet         = flag.Bool("quiet", false, "suppress diagnostic log output")
	)
	flag.Parse()

	if *quiet {
		monitoring.SetLogger(nil)
	}
	if *datasetPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*datasetPath, *tuningPath, *mode, *timestamp, *intervalStart, *intervalEnd, *kdistance); err != nil {
		log.Fatalf("pvanalyze: %v", err)
	}
}

func run(datasetPath, tuningPath, mode, timestamp, intervalStart, intervalEnd string, kdistance bool) error {
	data, err := plant.LoadFile(datasetPath)
	if err != nil {
		return err
	}

	tuning := config.EmptyTuningConfig()
	if tuningPath != "" {
		if tuning, err = config.LoadTuningConfig(tuningPath); err != nil {
			return fmt.Errorf("failed to load tuning config: %w", err)
		}
	}
	cfg, err := buildConfig(tuning, mode, timestamp, intervalStart, intervalEnd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := analysis.NewService(data)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if kdistance {
		k := cfg.DBSCANMinPts - 1
		if k < 1 {
			k = 1
		}
		curve, knee, err := svc.KDistanceCurve(ctx, cfg, k, cfg.DBSCANScaling)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{
			"k":             k,
			"distances":     curve,
			"knee_estimate": knee,
		})
	}

	result, err := svc.Run(ctx, cfg)
	if err != nil {
		return err
	}
	return enc.Encode(map[string]any{
		"run_id":         result.RunID,
		"mode":           result.Mode.String(),
		"cluster_count":  result.ClusterCount,
		"outliers_found": result.OutliersFound,
		"orientations":   result.Orientations(),
		"points":         result.Points,
	})
}

func buildConfig(tuning *config.TuningConfig, mode, timestamp, intervalStart, intervalEnd string) (analysis.Config, error) {
	parsedMode, err := analysis.ParseMode(mode)
	if err != nil {
		return analysis.Config{}, err
	}
	opticsScaling, err := analysis.ParseScalingType(tuning.GetOPTICSScaling())
	if err != nil {
		return analysis.Config{}, err
	}
	dbscanScaling, err := analysis.ParseScalingType(tuning.GetDBSCANScaling())
	if err != nil {
		return analysis.Config{}, err
	}
	return analysis.Config{
		Mode:          parsedMode,
		Timestamp:     timestamp,
		IntervalStart: intervalStart,
		IntervalEnd:   intervalEnd,
		XVariable:     tuning.GetXVariable(),
		YVariable:     tuning.GetYVariable(),
		OPTICSEpsilon: tuning.GetOPTICSEpsilon(),
		OPTICSMinPts:  tuning.GetOPTICSMinPts(),
		OPTICSScaling: opticsScaling,
		DBSCANEpsilon: tuning.GetDBSCANEpsilon(),
		DBSCANMinPts:  tuning.GetDBSCANMinPts(),
		DBSCANScaling: dbscanScaling,
	}, nil
}
