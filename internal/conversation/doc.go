// Package conversation holds the client-side conversation ledger and the
// reconciler that folds a streamed run into it.
//
// # State and Store
//
// State is the message list, session list, active session id, and streaming
// flags. A Store guards it with a mutex: the playground service mutates it in
// Store.Update while renderers read snapshots.
//
// # Reconciler
//
// A Reconciler owns one run. Begin appends the user message and an empty agent
// placeholder, Apply folds each decoded event into the placeholder, and Finish
// clears the streaming flag:
//
//	r := conversation.NewReconciler(target, conversation.WithLogger(logger))
//	store.Update(func(st *conversation.State) { effects = r.Begin(st, input) })
//	for each event:
//	    store.Update(func(st *conversation.State) { effects = r.Apply(st, ev) })
//	store.Update(func(st *conversation.State) { effects = r.Finish(st) })
//
// Streamed content may repeat everything sent so far instead of a delta. The
// reconciler tracks the last applied value and appends only the unseen
// suffix. RunCompleted overwrites the message with the authoritative result.
//
// # Sessions
//
// The Correlator registers the run's session in the session list at most once,
// synthesizes ids for workflows that have none, and evicts a session this run
// registered when the run fails.
//
// # Effects
//
// Reconciler operations return Effects describing what changed and what the
// caller still has to do, such as fetching a workflow session-state snapshot.
//
// # Broadcaster
//
// Broadcaster fans conversation Updates out to subscribers keyed by target.
package conversation
