package parser

import (
	"fmt"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Parser turns one raw log line into a normalized event. Parsers are pure:
// no tenant context, no side effects. The caller owns event identity,
// organization scoping and ingestion timestamps.
type Parser interface {
	SourceType() entity.SourceType
	Parse(rawLine string) (*entity.SecurityEvent, error)
}

// Registry resolves parsers by source-type key. Unknown keys are rejected
// explicitly rather than silently ignored.
type Registry struct {
	parsers map[entity.SourceType]Parser
}

// NewRegistry returns a registry with all supported parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[entity.SourceType]Parser)}
	for _, p := range []Parser{
		NewHAProxyParser(),
		NewNginxParser(),
		NewCrowdSecParser(),
		NewFail2banParser(),
	} {
		r.parsers[p.SourceType()] = p
	}
	return r
}

// Get returns the parser for the given source-type key.
func (r *Registry) Get(sourceType string) (Parser, error) {
	p, ok := r.parsers[entity.SourceType(sourceType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownSource, sourceType)
	}
	return p, nil
}

// SourceTypes lists the registered source-type keys.
func (r *Registry) SourceTypes() []entity.SourceType {
	types := make([]entity.SourceType, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	return types
}
