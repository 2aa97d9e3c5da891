// Package aggstore persists aggregates in relational databases.
//
// An aggregate is a root entity and everything it owns: embedded values,
// references, lists, sets and maps of entities, nested to any depth. It is
// always saved, loaded and deleted as a whole. Saving an existing aggregate
// deletes its child rows and inserts them again; a version property, when
// present, guards the root row against concurrent updates.
//
//	tpl, err := aggstore.NewTemplate(drv, model, aggstore.WithConverter(conv))
//	orders, err := aggstore.NewRepository[Order](tpl)
//
//	err = orders.Save(ctx, o)
//	o, err = orders.Get(ctx, o.ID)
//	err = orders.Delete(ctx, o)
//
// Writes run in their own transaction. Several writes are grouped with
// WithTx:
//
//	err := tpl.WithTx(ctx, func(tx *aggstore.Template) error {
//	    if err := orders.WithTx(tx).Save(ctx, a); err != nil {
//	        return err
//	    }
//	    return orders.WithTx(tx).Save(ctx, b)
//	})
//
// Listeners registered with WithListener observe every save, delete and
// load. Listeners of Before events can abort the write.
package aggstore
