package lattice

import (
	"reflect"

	"github.com/PaesslerAG/jsonpath"
)

// Lattice is the partial order over credential locations of one issued
// token: every reachable path, the mandatory subset, and the mapping
// from disclosure digest to the path it populates when revealed.
type Lattice struct {
	all         []Path
	mandatory   []Path
	disclosures map[string]Path
}

// New assembles a lattice from walker output.
func New(all, mandatory []Path, disclosures map[string]Path) *Lattice {
	return &Lattice{all: all, mandatory: mandatory, disclosures: disclosures}
}

// All returns every path present in the resolved payload.
func (l *Lattice) All() []Path {
	return l.all
}

// Mandatory returns the paths not gated by any disclosure digest.
func (l *Lattice) Mandatory() []Path {
	return l.mandatory
}

// DisclosurePaths maps each disclosure digest to its path.
func (l *Lattice) DisclosurePaths() map[string]Path {
	out := make(map[string]Path, len(l.disclosures))
	for digest, p := range l.disclosures {
		out[digest] = p
	}
	return out
}

// Contains reports whether the path is present in the lattice.
func (l *Lattice) Contains(p Path) bool {
	for _, candidate := range l.all {
		if candidate.Equal(p) {
			return true
		}
	}
	return false
}

// IsMandatory reports whether the path is always present.
func (l *Lattice) IsMandatory(p Path) bool {
	for _, candidate := range l.mandatory {
		if candidate.Equal(p) {
			return true
		}
	}
	return false
}

// Children returns the immediate children of a path.
func (l *Lattice) Children(p Path) []Path {
	var out []Path
	for _, candidate := range l.all {
		if len(candidate) == len(p)+1 && candidate.HasPrefix(p) {
			out = append(out, candidate)
		}
	}
	return out
}

// Descendants returns every strict descendant of a path.
func (l *Lattice) Descendants(p Path) []Path {
	var out []Path
	for _, candidate := range l.all {
		if len(candidate) > len(p) && candidate.HasPrefix(p) {
			out = append(out, candidate)
		}
	}
	return out
}

// TargetsFromJSONPath evaluates a JSONPath expression against the
// resolved payload and maps the matched values back to lattice paths.
// Wallets use this to turn verifier queries into disclosure targets.
func (l *Lattice) TargetsFromJSONPath(resolved any, expr string) ([]Path, error) {
	matched, err := jsonpath.Get(expr, resolved)
	if err != nil {
		return nil, err
	}

	values := []any{matched}
	if list, ok := matched.([]any); ok {
		values = list
	}

	var targets []Path
	for _, p := range l.all {
		v, ok := p.Resolve(resolved)
		if !ok {
			continue
		}
		for _, m := range values {
			if reflect.DeepEqual(v, m) {
				targets = append(targets, p)
				break
			}
		}
	}
	return targets, nil
}
