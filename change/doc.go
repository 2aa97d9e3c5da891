// Package change plans the writes that persist an aggregate.
//
// A Writer turns a save or delete call into an AggregateChange: an ordered
// list of actions in which parents precede their dependents. Updates delete
// every child row deepest first, update the root and then reinsert the
// current children:
//
//	c, err := change.NewWriter(model).Plan(old, order)
//	for i, a := range c.Actions {
//		fmt.Println(i, a)
//	}
//	// 0 Delete(items.notes, root=1)
//	// 1 Delete(items, root=1)
//	// 2 UpdateRoot(Order)
//	// 3 Insert(items, LineItem, key=0, dependsOn=2)
//	// 4 Insert(items.notes, Note, dependsOn=3)
//
// Inserts refer to the action of their parent by index, so the sequence can
// be executed without walking the object graph again.
package change
