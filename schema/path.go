package schema

import "strings"

// Path is a chain of properties starting at a root entity type
// (PropertyPath). The empty path denotes the root itself. Paths are values;
// Extend and Parent never modify the receiver.
type Path struct {
	root  *Entity
	props []*Property
}

// RootPath returns the empty path of e.
func RootPath(e *Entity) Path { return Path{root: e} }

// Extend returns the path with p appended.
func (p Path) Extend(prop *Property) Path {
	props := make([]*Property, len(p.props), len(p.props)+1)
	copy(props, p.props)
	return Path{root: p.root, props: append(props, prop)}
}

// Root returns the entity type the path starts at.
func (p Path) Root() *Entity { return p.root }

// Len returns the number of properties.
func (p Path) Len() int { return len(p.props) }

// IsEmpty reports whether the path denotes the root.
func (p Path) IsEmpty() bool { return len(p.props) == 0 }

// Leaf returns the last property, or nil for the empty path.
func (p Path) Leaf() *Property {
	if len(p.props) == 0 {
		return nil
	}
	return p.props[len(p.props)-1]
}

// Parent returns the path without its last property. The parent of the
// empty path is the empty path.
func (p Path) Parent() Path {
	if len(p.props) == 0 {
		return p
	}
	return Path{root: p.root, props: p.props[:len(p.props)-1]}
}

// Properties returns a copy of the property chain.
func (p Path) Properties() []*Property {
	return append([]*Property(nil), p.props...)
}

// String returns the dot-separated property names.
func (p Path) String() string {
	names := make([]string, len(p.props))
	for i, prop := range p.props {
		names[i] = prop.Name
	}
	return strings.Join(names, ".")
}

// Equal reports whether both paths have the same root and properties.
func (p Path) Equal(o Path) bool {
	if p.root != o.root || len(p.props) != len(o.props) {
		return false
	}
	for i := range p.props {
		if p.props[i] != o.props[i] {
			return false
		}
	}
	return true
}

// Entity returns the entity type at the end of the path.
func (p Path) Entity() *Entity {
	if leaf := p.Leaf(); leaf != nil {
		return leaf.target
	}
	return p.root
}

// IsEntity reports whether the path ends at a table-backed entity, that is
// the root or an association. Paths ending in an embedded value do not.
func (p Path) IsEntity() bool {
	leaf := p.Leaf()
	return leaf == nil || leaf.Kind.IsAssociation()
}

// TablePath strips trailing embedded properties, returning the path of the
// entity whose table stores the values of p.
func (p Path) TablePath() Path {
	for !p.IsEntity() {
		p = p.Parent()
	}
	return p
}

// TableName returns the table storing the values at the end of the path.
func (p Path) TableName() string { return p.TablePath().Entity().TableName() }

// IDDefiningParent returns the nearest proper ancestor path whose entity
// declares an identifier. Rows at p reference that ancestor. The empty path
// is returned when no intermediate entity has an identifier.
func (p Path) IDDefiningParent() Path {
	q := p.Parent()
	for !q.IsEmpty() {
		if q.IsEntity() && q.Entity().HasID() {
			return q
		}
		q = q.Parent()
	}
	return q
}

// ReverseColumn returns the back-reference column of the table at the end
// of the path.
func (p Path) ReverseColumn() string {
	if leaf := p.Leaf(); leaf != nil && leaf.BackReference != "" {
		return leaf.BackReference
	}
	return p.root.naming.ReverseColumnName(p)
}

// IsQualified reports whether the leaf is a list or map.
func (p Path) IsQualified() bool {
	leaf := p.Leaf()
	return leaf != nil && leaf.Kind.IsQualified()
}

// KeyColumn returns the column holding the list index or map key of the
// leaf, or "" when the leaf is not qualified.
func (p Path) KeyColumn() string {
	if !p.IsQualified() {
		return ""
	}
	if k := p.Leaf().KeyColumn; k != "" {
		return k
	}
	return p.root.naming.KeyColumnName(p)
}

// ColumnPrefix returns the prefix of result-set aliases for values read
// through the path: embedded properties contribute their prefix, other
// properties their name followed by "_".
func (p Path) ColumnPrefix() string {
	var sb strings.Builder
	for _, prop := range p.props {
		if prop.Kind == KindEmbedded {
			sb.WriteString(prop.Prefix)
		} else {
			sb.WriteString(prop.Name)
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// TableAlias returns the alias of the joined table at the end of the path,
// or the root table name for the empty path.
func (p Path) TableAlias() string {
	tp := p.TablePath()
	if tp.IsEmpty() {
		return p.root.TableName()
	}
	return strings.TrimSuffix(tp.ColumnPrefix(), "_")
}

// IsJoinable reports whether the entity at the end of the path can be read
// in the same query as the root: every step is single-valued and the root
// has an identifier, so each joined row references the root or another
// joined row.
func (p Path) IsJoinable() bool {
	if p.IsEmpty() || !p.root.HasID() {
		return false
	}
	for _, prop := range p.props {
		if prop.Kind.IsCollection() {
			return false
		}
	}
	return true
}
