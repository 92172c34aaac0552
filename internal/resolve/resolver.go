// Package resolve maps reference tokens in query and declaration documents to meta-model
// entities.
//
// A reference is created per element and caches its resolution in a Memo stamped with the
// access service's tracker. Unresolvable references yield an empty result, never an error;
// the only errors surfaced are context cancellations.
package resolve

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hybris-tools/tsls/internal/psi"
	"github.com/hybris-tools/tsls/internal/typesystem/access"
	"github.com/hybris-tools/tsls/internal/typesystem/lookup"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
)

// Reference is a resolvable span of an element
type Reference interface {
	// Element returns the node the reference belongs to
	Element() *psi.Node
	// RangeInElement returns the resolvable span relative to the element start
	RangeInElement() psi.Range
	// MultiResolve returns every valid target
	MultiResolve(ctx context.Context) ([]Result, error)
}

// TypeResolver returns the name of the type a declaration reference is looked up in
type TypeResolver func(node *psi.Node) (string, bool)

// Stats counts resolution activity
type Stats struct {
	Resolutions    uint64
	Recomputations uint64
}

// Resolver creates references and resolves them against an access service
type Resolver struct {
	access *access.Service
	lookup *lookup.Service
	logger *zap.Logger

	// TypeResolvers selects the type a declaration reference resolves in, by node kind
	TypeResolvers map[psi.Kind]TypeResolver

	resolutions    atomic.Uint64
	recomputations atomic.Uint64
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a resolver reading the model published by svc
func New(svc *access.Service, opts ...Option) *Resolver {
	r := &Resolver{
		access:        svc,
		lookup:        lookup.NewService(),
		logger:        zap.NewNop(),
		TypeResolvers: DefaultTypeResolvers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Access returns the access service
func (r *Resolver) Access() *access.Service {
	return r.access
}

// Lookup returns the qualifier lookup service
func (r *Resolver) Lookup() *lookup.Service {
	return r.lookup
}

// Stats returns the counters accumulated so far
func (r *Resolver) Stats() Stats {
	return Stats{
		Resolutions:    r.resolutions.Load(),
		Recomputations: r.recomputations.Load(),
	}
}

// ReferenceFor returns the reference carried by node, or nil
func (r *Resolver) ReferenceFor(node *psi.Node) Reference {
	if node == nil {
		return nil
	}
	switch node.Kind {
	case psi.KindColumnReference:
		return r.ColumnReference(node)
	case psi.KindTableName:
		return r.TableReference(node)
	case psi.KindTypeReferenceValue:
		return r.TypeReference(node)
	}
	if _, ok := r.TypeResolvers[node.Kind]; ok {
		return r.AttributeDeclarationReference(node)
	}
	return nil
}

// ReferencesAt returns the references whose element contains offset, innermost first
func (r *Resolver) ReferencesAt(root *psi.Node, offset int) []Reference {
	var refs []Reference
	for n := psi.LeafAt(root, offset); n != nil; n = n.Parent {
		if ref := r.ReferenceFor(n); ref != nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Resolve resolves the reference carried by node. Nodes without a reference resolve to
// nothing.
func (r *Resolver) Resolve(ctx context.Context, node *psi.Node) ([]Result, error) {
	ref := r.ReferenceFor(node)
	if ref == nil {
		return nil, nil
	}
	return ref.MultiResolve(ctx)
}

// memoized runs compute through memo and keeps the counters
func (r *Resolver) memoized(ctx context.Context, memo *Memo[[]Result], node *psi.Node, compute func(context.Context, *meta.Registry) []Result) ([]Result, error) {
	r.resolutions.Add(1)
	results, err := memo.Get(ctx, r.access.Tracker(), func(ctx context.Context) ([]Result, error) {
		r.recomputations.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results := ValidResults(compute(ctx, r.access.MetaModel()))
		r.logger.Debug("reference resolved",
			zap.Stringer("element", node),
			zap.Int("results", len(results)),
		)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
