package canon

import (
	"context"
	"encoding/json"
	"fmt"

	"sdvc/pkg/model"

	"github.com/piprate/json-gold/ld"
)

// RDFC canonicalizes a JSON-LD document to N-Quads with RDFC-1.0
// (URDNA2015). When a resolver is supplied, remote context IRIs are
// resolved through it instead of the network.
func RDFC(ctx context.Context, serialized string, resolver ContextResolver) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", model.ErrCancelled
	}

	var doc any
	if err := json.Unmarshal([]byte(serialized), &doc); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrCanonicalizationFailed, err)
	}

	opts := ld.NewJsonLdOptions("")
	opts.Algorithm = ld.AlgorithmURDNA2015
	opts.Format = "application/n-quads"
	if resolver != nil {
		opts.DocumentLoader = &resolverLoader{resolver: resolver}
	}

	proc := ld.NewJsonLdProcessor()
	normalized, err := proc.Normalize(doc, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrCanonicalizationFailed, err)
	}

	normalizedStr, ok := normalized.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected normalized format %T", model.ErrCanonicalizationFailed, normalized)
	}

	return normalizedStr, nil
}

// resolverLoader adapts a ContextResolver delegate to the json-gold
// DocumentLoader interface.
type resolverLoader struct {
	resolver ContextResolver
}

func (l *resolverLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	doc, err := l.resolver(u)
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}
	return &ld.RemoteDocument{DocumentURL: u, Document: doc}, nil
}
