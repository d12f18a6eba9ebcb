package lattice

import (
	"fmt"
	"sort"

	"sdvc/pkg/model"
)

// MinimumDisclosure computes the smallest set of disclosure digests
// whose revelation makes every target path present. A descendant can
// only appear once every redacting ancestor is revealed, so the set
// includes the digests of every disclosure-gated prefix of each target.
// The result is sorted lexicographically for deterministic output.
func (l *Lattice) MinimumDisclosure(targets []Path) ([]string, error) {
	needed := make(map[string]struct{})

	for _, target := range targets {
		if !l.Contains(target) {
			return nil, fmt.Errorf("%w: path %s", model.ErrDisclosureNotInToken, target)
		}

		// Ancestors first: every gated prefix of the target, the target
		// itself included, contributes its digest.
		for digest, p := range l.disclosures {
			if target.HasPrefix(p) {
				needed[digest] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(needed))
	for digest := range needed {
		out = append(out, digest)
	}
	sort.Strings(out)
	return out, nil
}
