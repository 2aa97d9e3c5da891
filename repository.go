package aggstore

import (
	"context"

	"github.com/syssam/aggstore/schema"
)

// Repository is a typed view of a Template for aggregates of root type T.
type Repository[T any] struct {
	t *Template
	e *schema.Entity
}

// NewRepository returns the repository of T, which must be registered in
// the template's model.
func NewRepository[T any](t *Template) (*Repository[T], error) {
	e, err := schema.Of[T](t.model)
	if err != nil {
		return nil, err
	}
	return &Repository[T]{t: t, e: e}, nil
}

// Entity returns the description of T.
func (r *Repository[T]) Entity() *schema.Entity { return r.e }

// WithTx returns a repository writing through tx, a template passed to a
// Template.WithTx callback.
func (r *Repository[T]) WithTx(tx *Template) *Repository[T] {
	return &Repository[T]{t: tx, e: r.e}
}

// Save inserts or updates v.
func (r *Repository[T]) Save(ctx context.Context, v *T) error {
	return r.t.Save(ctx, v)
}

// Insert inserts v even when its identifier is set.
func (r *Repository[T]) Insert(ctx context.Context, v *T) error {
	return r.t.Insert(ctx, v)
}

// Update updates v.
func (r *Repository[T]) Update(ctx context.Context, v *T) error {
	return r.t.Update(ctx, v)
}

// Get loads the aggregate with the given identifier and fails with a
// *NotFoundError when it does not exist.
func (r *Repository[T]) Get(ctx context.Context, id any) (*T, error) {
	v, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, NewNotFoundError(r.e.Name, id)
	}
	return v, nil
}

// Find loads the aggregate with the given identifier, or returns nil.
func (r *Repository[T]) Find(ctx context.Context, id any) (*T, error) {
	v, err := r.t.FindByID(ctx, r.e, id)
	if err != nil || v == nil {
		return nil, err
	}
	return v.(*T), nil
}

// FindAll loads every aggregate.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	return typed[T](r.t.FindAll(ctx, r.e))
}

// FindAllByID loads the aggregates with the given identifiers.
func (r *Repository[T]) FindAllByID(ctx context.Context, ids ...any) ([]*T, error) {
	return typed[T](r.t.FindAllByID(ctx, r.e, ids...))
}

// FindAllPage loads one page of aggregates in identifier order.
func (r *Repository[T]) FindAllPage(ctx context.Context, limit, offset int64) ([]*T, error) {
	return typed[T](r.t.FindAllPage(ctx, r.e, limit, offset))
}

// Count returns the number of stored aggregates.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return r.t.Count(ctx, r.e)
}

// Exists reports whether the aggregate with the given identifier exists.
func (r *Repository[T]) Exists(ctx context.Context, id any) (bool, error) {
	return r.t.ExistsByID(ctx, r.e, id)
}

// Delete deletes v, checking its version when T is versioned.
func (r *Repository[T]) Delete(ctx context.Context, v *T) error {
	return r.t.Delete(ctx, v)
}

// DeleteByID deletes the aggregate with the given identifier.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) error {
	return r.t.DeleteByID(ctx, r.e, id)
}

// DeleteAll deletes every aggregate.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	return r.t.DeleteAll(ctx, r.e)
}

func typed[T any](all []any, err error) ([]*T, error) {
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(all))
	for i, v := range all {
		out[i] = v.(*T)
	}
	return out, nil
}
