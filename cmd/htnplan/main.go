// Command htnplan runs a plan -> validate -> execute cycle for a single JSON
// request read from a file or stdin, reporting the outcome through the exit
// codes described in the design doc: 0 success, 1 generic failure, 2 input
// validation, 3 planning failure, 4 execution failure with partial results,
// 5 cancelled, 6 external-solver unreachable when no fallback is configured.
//
// # Configuration
//
// Environment variables:
//
//	HTNPLAN_MAX_RETRIES       - coordinator replan attempts (default: 10)
//	HTNPLAN_SOLVER_TIMEOUT    - per-stage solver timeout (default: "5s")
//	HTNPLAN_EXTERNAL_SOLVER   - path to an external CSP solver binary (optional)
//	HTNPLAN_REQUIRE_EXTERNAL  - "1" to fail fast (exit 6) instead of falling
//	                            back to the matrix solver when the external
//	                            binary path cannot be stat'ed (e.g. it is
//	                            missing); execute permission is not checked
//	HTNPLAN_SEED              - deterministic ordering seed (default: 0)
//
// # Example
//
//	htnplan -request plan.json
//	cat plan.json | htnplan
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/htnkit/corestn/config"
	"github.com/htnkit/corestn/coordinator"
	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/engine/inmem"
	"github.com/htnkit/corestn/state"
	"github.com/htnkit/corestn/stn/solver"
	"github.com/htnkit/corestn/transform"
)

const (
	exitSuccess = iota
	exitGeneric
	exitInvalidInput
	exitNoPlan
	exitExecutionFailed
	exitCancelled
	exitExternalUnreachable
)

func main() {
	os.Exit(run())
}

func run() int {
	requestPath := flag.String("request", "", "path to a JSON request file (default: stdin)")
	flag.Parse()

	raw, err := readRequest(*requestPath)
	if err != nil {
		log.Printf("read request: %v", err)
		return exitGeneric
	}

	result, err := transform.DecodeAndConvert(raw)
	if err != nil {
		log.Printf("invalid request: %v", err)
		return exitInvalidInput
	}

	externalBinary := envOr("HTNPLAN_EXTERNAL_SOLVER", "")
	if externalBinary != "" && envOr("HTNPLAN_REQUIRE_EXTERNAL", "") == "1" {
		if _, statErr := os.Stat(externalBinary); statErr != nil {
			log.Printf("required external solver unreachable: %v", statErr)
			return exitExternalUnreachable
		}
	}

	cfg := config.New(
		config.WithMaxRetries(envIntOr("HTNPLAN_MAX_RETRIES", 10)),
		config.WithSolverTimeout(envDurationOr("HTNPLAN_SOLVER_TIMEOUT", 5*time.Second)),
		config.WithSeed(int64(envIntOr("HTNPLAN_SEED", 0))),
	)

	var external *solver.ExternalSolver
	if externalBinary != "" {
		external = solver.NewExternalSolver(externalBinary, time.Second, 4)
	}
	sv := solver.NewSolver(external, cfg.Logger, cfg.Metrics)

	co := coordinator.New(result.Domain, cfg, coordinator.Strategies{
		Temporal: coordinator.NewSolverTemporalStrategy(sv),
	})

	ctx, cancel := coordinator.CancellableContext(context.Background(), 0)
	defer cancel()

	// The CLI runs the coordinator loop through the in-memory workflow
	// engine; deployments that need the run to survive restarts register the
	// same workflow on engine/temporal instead.
	eng := inmem.New()
	if err := co.RegisterWorkflow(ctx, eng, "htnplan"); err != nil {
		log.Printf("register coordinator workflow: %v", err)
		return exitGeneric
	}
	res, err := co.RunViaEngine(ctx, eng, "htnplan-"+uuid.NewString(), result.State, result.Todos)
	if err != nil {
		log.Printf("run coordinator workflow: %v", err)
		return exitGeneric
	}
	return report(res)
}

func report(res coordinator.Result) int {
	out := struct {
		Attempts int            `json:"attempts"`
		Facts    []state.Triple `json:"final_state"`
		Error    string         `json:"error,omitempty"`
	}{
		Attempts: res.Attempts,
		Facts:    res.FinalState.ToTriples(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Printf("encode result: %v", err)
	}

	if res.Err == nil {
		return exitSuccess
	}
	kind, _ := corerr.KindOf(res.Err)
	switch kind {
	case corerr.InvalidInput:
		return exitInvalidInput
	case corerr.NoPlan:
		return exitNoPlan
	case corerr.ActionFailed, corerr.EntityUnavailable:
		return exitExecutionFailed
	case corerr.Cancelled:
		return exitCancelled
	default:
		return exitGeneric
	}
}

func readRequest(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
