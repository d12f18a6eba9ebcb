package sd

import (
	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/sd/lattice"
)

// Lattice walks the issuer payload and the token's disclosures and
// emits the path lattice: all reachable paths, the mandatory subset,
// and each disclosure's mapped path.
func (t *SdJwtToken) Lattice() (*lattice.Lattice, error) {
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}

	hashName, err := t.HashName()
	if err != nil {
		return nil, err
	}
	newHash, err := dataintegrity.DefaultHashSelector(hashName)
	if err != nil {
		return nil, err
	}

	byDigest := make(map[string]*Disclosure, len(t.Disclosures))
	for _, d := range t.Disclosures {
		digest, err := d.DigestJSON(newHash)
		if err != nil {
			return nil, err
		}
		byDigest[digest] = d
	}

	w := &latticeWalker{
		byDigest:    byDigest,
		disclosures: make(map[string]lattice.Path),
	}
	w.walk(payload, nil, false)

	return lattice.New(w.all, w.mandatory, w.disclosures), nil
}

type latticeWalker struct {
	byDigest    map[string]*Disclosure
	all         []lattice.Path
	mandatory   []lattice.Path
	disclosures map[string]lattice.Path
}

// walk records the location of every node. gated marks subtrees that
// only exist once some disclosure is revealed; gated paths are never
// mandatory.
func (w *latticeWalker) walk(node any, at lattice.Path, gated bool) {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			switch key {
			case claimSD:
				digests, _ := value.([]any)
				for _, raw := range digests {
					digest, _ := raw.(string)
					d, ok := w.byDigest[digest]
					if !ok {
						continue
					}
					name, _ := d.ClaimName()
					p := at.Child(name)
					w.disclosures[digest] = p
					w.record(p, true)
					w.walk(d.Value(), p, true)
				}
			case claimSDAlg:
				// Marker, not a payload location.
			default:
				p := at.Child(key)
				w.record(p, gated)
				w.walk(value, p, gated)
			}
		}

	case []any:
		for i, elem := range v {
			p := at.Element(i)
			if digest, ok := arrayRedactionDigest(elem); ok {
				d, known := w.byDigest[digest]
				if !known {
					continue
				}
				w.disclosures[digest] = p
				w.record(p, true)
				w.walk(d.Value(), p, true)
				continue
			}
			w.record(p, gated)
			w.walk(elem, p, gated)
		}
	}
}

func (w *latticeWalker) record(p lattice.Path, gated bool) {
	w.all = append(w.all, p)
	if !gated {
		w.mandatory = append(w.mandatory, p)
	}
}
