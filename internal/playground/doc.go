// Package playground drives conversations with a playground backend.
//
// # Overview
//
// A Service owns the conversation for one selected target (agent, team, or
// workflow). Submit sends user input, reads the streamed response, and folds
// each record into the conversation store through a run reconciler:
//
//	svc := playground.New(client.New(endpoint), playground.WithStore(db))
//	if _, err := svc.Initialize(ctx, model.Target{}); err != nil {
//	    return err
//	}
//	res, err := svc.Submit(ctx, "Hello")
//
// Submit only fails on preconditions (empty input, no target, a run already
// in progress). Transport and run failures leave the partial response in the
// conversation, marked as failed, and are reported on the Result.
//
// # Updates
//
// Renderers subscribe to per-target updates (content deltas, tool calls,
// session changes, terminal status) with Subscribe.
//
// # Workflow State
//
// Workflow sessions carry a server-side state snapshot. It is fetched after
// each run and kept current by a Refresher, at most once per refresh
// interval per session.
package playground
