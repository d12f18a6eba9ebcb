package canon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedResolver wraps a ContextResolver with a TTL cache so repeated
// canonicalizations of credentials sharing contexts resolve each IRI
// once per TTL window.
type CachedResolver struct {
	inner ContextResolver
	cache *ttlcache.Cache[string, any]
}

// NewCachedResolver builds a caching resolver. A zero ttl means entries
// never expire.
func NewCachedResolver(inner ContextResolver, ttl time.Duration) *CachedResolver {
	opts := []ttlcache.Option[string, any]{}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, any](ttl))
	}

	cache := ttlcache.New[string, any](opts...)
	go cache.Start()

	return &CachedResolver{inner: inner, cache: cache}
}

// Resolve satisfies the ContextResolver delegate shape.
func (r *CachedResolver) Resolve(iri string) (any, error) {
	if item := r.cache.Get(iri); item != nil {
		return item.Value(), nil
	}

	doc, err := r.inner(iri)
	if err != nil {
		return nil, err
	}

	r.cache.Set(iri, doc, ttlcache.DefaultTTL)
	return doc, nil
}

// Stop shuts down the cache janitor.
func (r *CachedResolver) Stop() {
	r.cache.Stop()
}

// StaticResolver serves contexts from an in-memory map of IRI to raw
// JSON document, the usual setup for well-known W3C contexts bundled
// with a deployment.
func StaticResolver(contexts map[string]string) ContextResolver {
	return func(iri string) (any, error) {
		raw, ok := contexts[iri]
		if !ok {
			return nil, fmt.Errorf("unknown JSON-LD context: %s", iri)
		}
		var doc any
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
}
