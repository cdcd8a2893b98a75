// Package solver implements the STN's hierarchical solve strategy:
// an external CSP binary tried first, a Floyd-Warshall matrix fallback, and
// a conservative checker that only rules out obvious inconsistencies.
package solver

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/htnkit/corestn/corerr"
	"github.com/htnkit/corestn/stn"
)

// WireRequest is the STN wire format shipped to an external CSP solver.
type WireRequest struct {
	NumTimepoints  int      `json:"num_timepoints"`
	LowerBounds    []int    `json:"lower_bounds"`
	UpperBounds    []int    `json:"upper_bounds"`
	MinDomain      int      `json:"min_domain"`
	MaxDomain      int      `json:"max_domain"`
	TimepointNames []string `json:"timepoint_names"`
}

// WireResponse is the external solver's reply.
type WireResponse struct {
	Status     string `json:"status"`
	Timepoints []int  `json:"timepoints,omitempty"`
}

const (
	statusSatisfiable   = "SATISFIABLE"
	statusUnsatisfiable = "UNSATISFIABLE"

	separatorToken   = "----------"
	unsatisfiableTag = "=====UNSATISFIABLE====="
)

// EncodeWireRequest serializes s into the wire format, clamping unbounded
// edges to +-domainBound so the external solver's fixed-width integer
// representation can carry them.
func EncodeWireRequest(s *stn.STN, domainBound int) WireRequest {
	tps := s.Timepoints()
	// Deterministic ordering: the wire format has no notion of timepoint
	// identity beyond position; Timepoints() returns the timepoints sorted,
	// so the same STN always encodes to the same positions.
	names := make([]string, len(tps))
	idx := make(map[stn.Timepoint]int, len(tps))
	for i, tp := range tps {
		names[i] = string(tp)
		idx[tp] = i
	}
	n := len(tps)
	lower := make([]int, n*n)
	upper := make([]int, n*n)
	for e, b := range edgesOf(s) {
		i, j := idx[e.i], idx[e.j]
		lower[i*n+j] = clampInt(b.Lower, -domainBound, domainBound)
		upper[i*n+j] = clampInt(b.Upper, -domainBound, domainBound)
	}
	return WireRequest{
		NumTimepoints:  n,
		LowerBounds:    lower,
		UpperBounds:    upper,
		MinDomain:      -domainBound,
		MaxDomain:      domainBound,
		TimepointNames: names,
	}
}

type edgeBound struct {
	i, j stn.Timepoint
}

func edgesOf(s *stn.STN) map[edgeBound]stn.Bound {
	out := map[edgeBound]stn.Bound{}
	for _, e := range s.Edges() {
		out[edgeBound{i: e.I, j: e.J}] = e.Bound
	}
	return out
}

func clampInt(f float64, min, max int) int {
	if f > float64(max) {
		return max
	}
	if f < float64(min) {
		return min
	}
	return int(f)
}

const wireRequestSchemaJSON = `{
  "type": "object",
  "required": ["num_timepoints", "lower_bounds", "upper_bounds", "min_domain", "max_domain", "timepoint_names"],
  "properties": {
    "num_timepoints": {"type": "integer", "minimum": 0},
    "lower_bounds": {"type": "array", "items": {"type": "integer"}},
    "upper_bounds": {"type": "array", "items": {"type": "integer"}},
    "min_domain": {"type": "integer"},
    "max_domain": {"type": "integer"},
    "timepoint_names": {"type": "array", "items": {"type": "string"}}
  }
}`

var compiledWireRequestSchema *jsonschema.Schema

func init() {
	var schemaDoc any
	if err := json.Unmarshal([]byte(wireRequestSchemaJSON), &schemaDoc); err != nil {
		panic("solver: invalid embedded wire request schema: " + err.Error())
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("wire_request.json", schemaDoc); err != nil {
		panic("solver: add wire request schema resource: " + err.Error())
	}
	sch, err := c.Compile("wire_request.json")
	if err != nil {
		panic("solver: compile wire request schema: " + err.Error())
	}
	compiledWireRequestSchema = sch
}

// ValidateWireRequestJSON validates an encoded WireRequest's JSON form
// against the wire-format schema before it is shipped to an external
// solver process, catching a malformed encode as invalid_input rather than
// letting the external binary fail opaquely.
func ValidateWireRequestJSON(payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "malformed wire request JSON", err)
	}
	if err := compiledWireRequestSchema.Validate(doc); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "wire request failed schema validation", err)
	}
	return nil
}

// DecodeWireResponse tolerates the known separator/unsatisfiable tokens that
// surround a raw external-solver transcript before the JSON payload.
func DecodeWireResponse(raw []byte) (WireResponse, error) {
	text := string(raw)
	text = strings.ReplaceAll(text, separatorToken, "")
	if strings.Contains(text, unsatisfiableTag) {
		return WireResponse{Status: statusUnsatisfiable}, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return WireResponse{}, corerr.New(corerr.InvalidInput, "empty external solver response")
	}
	var resp WireResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return WireResponse{}, corerr.Wrap(corerr.InvalidInput, "decode external solver response", err)
	}
	return resp, nil
}
