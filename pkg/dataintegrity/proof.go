package dataintegrity

// DataIntegrityProof is the embedded proof object attached to a
// credential. The type field is always "DataIntegrityProof"; the suite
// carries the actual algorithm triple.
type DataIntegrityProof struct {
	ID                 string `json:"id,omitempty"`
	Type               string `json:"type"`
	Cryptosuite        string `json:"cryptosuite"`
	VerificationMethod string `json:"verificationMethod"`
	ProofPurpose       string `json:"proofPurpose"`
	Created            string `json:"created,omitempty"`
	Expires            string `json:"expires,omitempty"`
	Domain             string `json:"domain,omitempty"`
	Challenge          string `json:"challenge,omitempty"`
	Nonce              string `json:"nonce,omitempty"`
	PreviousProof      string `json:"previousProof,omitempty"`
	ProofValue         string `json:"proofValue,omitempty"`
}

// Equal reports value equality across all fields.
func (p DataIntegrityProof) Equal(other DataIntegrityProof) bool {
	return p == other
}

// ToMap renders the proof as a credential document node, omitting empty
// optional fields.
func (p DataIntegrityProof) ToMap() map[string]any {
	m := map[string]any{
		"type":               p.Type,
		"cryptosuite":        p.Cryptosuite,
		"verificationMethod": p.VerificationMethod,
		"proofPurpose":       p.ProofPurpose,
	}

	setIfPresent := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	setIfPresent("id", p.ID)
	setIfPresent("created", p.Created)
	setIfPresent("expires", p.Expires)
	setIfPresent("domain", p.Domain)
	setIfPresent("challenge", p.Challenge)
	setIfPresent("nonce", p.Nonce)
	setIfPresent("previousProof", p.PreviousProof)
	setIfPresent("proofValue", p.ProofValue)

	return m
}

// ProofFromMap reads a proof node from a credential document.
func ProofFromMap(m map[string]any) DataIntegrityProof {
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	return DataIntegrityProof{
		ID:                 str("id"),
		Type:               str("type"),
		Cryptosuite:        str("cryptosuite"),
		VerificationMethod: str("verificationMethod"),
		ProofPurpose:       str("proofPurpose"),
		Created:            str("created"),
		Expires:            str("expires"),
		Domain:             str("domain"),
		Challenge:          str("challenge"),
		Nonce:              str("nonce"),
		PreviousProof:      str("previousProof"),
		ProofValue:         str("proofValue"),
	}
}
