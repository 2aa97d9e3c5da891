package sqlgen

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/aggstore/dialect"
	"github.com/syssam/aggstore/dialect/sql"
	"github.com/syssam/aggstore/schema"
)

// Source memoizes one Generator per entity description. Generators are
// created on first use and never invalidated.
type Source struct {
	d     dialect.Dialect
	b     *sql.DialectBuilder
	cache sync.Map // *schema.Entity => *Generator
	group singleflight.Group
}

// NewSource returns a Source rendering statements for d.
func NewSource(d dialect.Dialect) *Source {
	return &Source{d: d, b: sql.Dialect(d)}
}

// Dialect returns the dialect statements are rendered for.
func (s *Source) Dialect() dialect.Dialect { return s.d }

// For returns the generator of e.
func (s *Source) For(e *schema.Entity) *Generator {
	if g, ok := s.cache.Load(e); ok {
		return g.(*Generator)
	}
	v, _, _ := s.group.Do(fmt.Sprintf("%p", e), func() (any, error) {
		if g, ok := s.cache.Load(e); ok {
			return g, nil
		}
		g := newGenerator(e, s.b)
		s.cache.Store(e, g)
		return g, nil
	})
	return v.(*Generator)
}
