// Package privacy provides access policies for aggregates.
//
// A Policy is an ordered list of rules registered on a Template with
// aggstore.WithListener. It is evaluated for every event the template
// raises: a Deny decision before a save or delete aborts the write, a Deny
// decision after a load fails the load.
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: grants access and stops evaluation
//   - Deny: denies access and stops evaluation
//   - Skip (or nil): continues with the next rule
//
// When every rule skips, the operation proceeds.
//
//	policy := privacy.NewPolicy(
//	    privacy.DenyIfNoViewer(),
//	    privacy.Writes(
//	        privacy.HasRole("admin"),
//	        privacy.IsOwner("customer"),
//	        privacy.AlwaysDenyRule(),
//	    ),
//	    privacy.Loads(privacy.TenantRule("tenant")),
//	)
//	tpl, err := aggstore.NewTemplate(drv, model, aggstore.WithListener(policy))
//
// # Viewer
//
// The viewer making a request is stored in the context:
//
//	ctx := privacy.WithViewer(ctx, &privacy.SimpleViewer{
//	    UserID: "ada",
//	    Roles:  []string{"user"},
//	})
//
// A decision stored with DecisionContext bypasses every policy, which is
// useful for system tasks.
package privacy
