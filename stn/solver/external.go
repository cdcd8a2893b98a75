package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	"golang.org/x/time/rate"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
)

// ExternalSolver invokes a pluggable external CSP binary (the reference
// design assumes a MiniZinc-family solver) over the wire format. Each
// invocation gets its own temporary working directory, deleted
// unconditionally on exit.
type ExternalSolver struct {
	// BinaryPath is the path to the external solver executable. Empty
	// disables this stage entirely (the hierarchy falls through to Matrix).
	BinaryPath string
	// Limiter bounds how often the external binary may be invoked, guarding
	// against hammering a flaky external process across replanning retries.
	Limiter *rate.Limiter
}

// NewExternalSolver constructs an ExternalSolver with a limiter allowing up
// to burst invocations immediately and then one every interval.
func NewExternalSolver(binaryPath string, interval time.Duration, burst int) *ExternalSolver {
	return &ExternalSolver{
		BinaryPath: binaryPath,
		Limiter:    rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Solve serializes s to the wire format and invokes the external binary,
// returning the updated STN on success. transient reports whether a failure
// should NOT blacklist the external solver (timeouts/context cancellation
// are transient; anything else is treated as a non-transient identity
// failure, blacklisting the solver's identity).
func (e *ExternalSolver) Solve(ctx context.Context, s *stn.STN, domainBound int, timeout time.Duration) (solved *stn.STN, transient bool, err error) {
	if e == nil || e.BinaryPath == "" {
		return nil, true, corerr.New(corerr.InvalidInput, "no external solver configured")
	}
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return nil, true, corerr.Wrap(corerr.Timeout, "external solver rate limiter", err)
		}
	}

	req := EncodeWireRequest(s, domainBound)
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, false, corerr.Wrap(corerr.InvalidInput, "encode external solver request", err)
	}
	if err := ValidateWireRequestJSON(payload); err != nil {
		return nil, false, err
	}

	workDir, err := os.MkdirTemp("", "htnplan-stn-solve-*")
	if err != nil {
		return nil, true, corerr.Wrap(corerr.Timeout, "create external solver workdir", err)
	}
	defer os.RemoveAll(workDir)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, e.BinaryPath)
	cmd.Dir = workDir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	runErr := cmd.Run()
	if cctx.Err() == context.DeadlineExceeded {
		return nil, true, corerr.New(corerr.Timeout, "external solver exceeded stage timeout")
	}
	if runErr != nil {
		// A non-zero exit / exec failure is treated as a non-transient
		// identity failure: the caller blacklists this solver for the
		// remainder of the planning attempt and relies on the fallback
		// stages.
		return nil, false, corerr.Wrap(corerr.InvalidInput, "external solver invocation failed", runErr)
	}

	resp, err := DecodeWireResponse(stdout.Bytes())
	if err != nil {
		return nil, false, err
	}
	if resp.Status == statusUnsatisfiable {
		return nil, false, corerr.New(corerr.STNInconsistent, "external solver reported UNSATISFIABLE")
	}
	if resp.Status != statusSatisfiable {
		return nil, false, corerr.Newf(corerr.InvalidInput, "external solver returned unknown status %q", resp.Status)
	}

	tps := s.Timepoints()
	if len(resp.Timepoints) != len(tps) {
		return nil, false, corerr.New(corerr.InvalidInput, "external solver timepoint count mismatch")
	}

	out := s.Clone()
	solvedTimes := make(map[string]int, len(tps))
	for i, tp := range tps {
		solvedTimes[string(tp)] = resp.Timepoints[i]
	}
	out.Metadata["solved_times"] = solvedTimes
	consistent := true
	out.Consistent = &consistent
	return out, false, nil
}
