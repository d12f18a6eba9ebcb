package sd

import (
	"sdvc/pkg/dataintegrity"
	"sdvc/pkg/sd/lattice"
)

// Lattice walks the CWT claims and the token's disclosures and emits
// the path lattice, recognizing the simple-59 and tag-60 markers.
func (t *SdCwtToken) Lattice() (*lattice.Lattice, error) {
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}

	newHash, err := dataintegrity.DefaultHashSelector(t.HashName())
	if err != nil {
		return nil, err
	}

	byDigest := make(map[string]*Disclosure, len(t.Disclosures))
	for _, d := range t.Disclosures {
		digest, err := d.DigestCBOR(newHash)
		if err != nil {
			return nil, err
		}
		byDigest[string(digest)] = d
	}

	w := &cwtLatticeWalker{
		byDigest:    byDigest,
		disclosures: make(map[string]lattice.Path),
	}
	w.walk(payload, nil, false)

	return lattice.New(w.all, w.mandatory, w.disclosures), nil
}

type cwtLatticeWalker struct {
	byDigest    map[string]*Disclosure
	all         []lattice.Path
	mandatory   []lattice.Path
	disclosures map[string]lattice.Path
}

func (w *cwtLatticeWalker) walk(node any, at lattice.Path, gated bool) {
	switch v := node.(type) {
	case map[any]any:
		for key, value := range v {
			if IsRedactedKeysEntry(key) {
				digests, _ := value.([]any)
				for _, raw := range digests {
					digest, _ := raw.([]byte)
					d, ok := w.byDigest[string(digest)]
					if !ok {
						continue
					}
					name, _ := d.ClaimName()
					p := at.Child(name)
					w.disclosures[string(digest)] = p
					w.record(p, true)
					w.walk(d.Value(), p, true)
				}
				continue
			}

			name, ok := key.(string)
			if !ok {
				continue
			}
			p := at.Child(name)
			w.record(p, gated)
			w.walk(value, p, gated)
		}

	case []any:
		for i, elem := range v {
			p := at.Element(i)
			if digest, ok := RedactedElementDigest(elem); ok {
				d, known := w.byDigest[string(digest)]
				if !known {
					continue
				}
				w.disclosures[string(digest)] = p
				w.record(p, true)
				w.walk(d.Value(), p, true)
				continue
			}
			w.record(p, gated)
			w.walk(elem, p, gated)
		}
	}
}

func (w *cwtLatticeWalker) record(p lattice.Path, gated bool) {
	w.all = append(w.all, p)
	if !gated {
		w.mandatory = append(w.mandatory, p)
	}
}
