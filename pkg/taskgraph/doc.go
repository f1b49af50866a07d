/*
Package taskgraph runs a set of interdependent tasks concurrently, in
dependency order, inside one process.

# Overview

A graph is a set of nodes. Each node has a work function and may depend
on other nodes. When a run is triggered, every node whose dependencies
have all completed starts in its own goroutine, so independent branches
run in parallel. Results accumulate in an immutable Snapshot: the seed
value under InitialKey plus one entry per completed node, keyed by node
ID. Each work function receives the snapshot current when it starts.

# Basic Usage

	constant := func(v int) taskgraph.WorkFunc {
	    return func(taskgraph.Context, *taskgraph.Snapshot) (any, error) { return v, nil }
	}
	add := func(keys ...string) taskgraph.WorkFunc {
	    return func(ctx taskgraph.Context, in *taskgraph.Snapshot) (any, error) {
	        sum := 0
	        for _, k := range keys {
	            v, _ := taskgraph.Value[int](in, k)
	            sum += v
	        }
	        return sum, nil
	    }
	}

	runner, err := taskgraph.NewGraph().
	    AddNode("A", constant(1)).
	    AddNode("B", constant(2)).
	    AddNode("C", add("A", "B"), taskgraph.WithDependencies("A", "B")).
	    AddNode("D", add("B", "C"), taskgraph.WithDependencies("B", "C")).
	    Build()
	if err != nil {
	    log.Fatal(err)
	}

	final, err := runner.Trigger(context.Background())
	// final: {initial: nil, A: 1, B: 2, C: 3, D: 5}

# Failure Semantics

A node that fails after exhausting its retries is recorded as a *NodeError
and its dependents never run; they stay pending. Other branches are not
affected. Trigger still returns the final snapshot: failures surface
through completion hooks, WithOnComplete, and the Run returned by Execute.

	run, _ := runner.Execute(ctx)
	for _, err := range run.Errors() {
	    var nodeErr *taskgraph.NodeError
	    if errors.As(err, &nodeErr) {
	        log.Printf("%s: %v", nodeErr.NodeID, nodeErr.Err)
	    }
	}

# Enablement

WithEnabled(false) skips a node on every run. WithEnabledFunc decides per
run: the predicate is called once, with the snapshot current when the
node's dependencies have all completed. Skipped nodes produce no result
and their dependents never run.

# Retries and Hooks

WithRetry(n, delay) allows n additional attempts. The completion handler
fires once per run with the final outcome; the error handler fires once
after the last failed attempt. Hook errors and panics are logged and
collected on the Run; they never change a node's outcome.

# Observability

Run options enable structured logging (WithObservabilityLogger),
OpenTelemetry metrics (WithMetrics), tracing (WithTracing), and a durable
run history (WithHistory).

# Thread Safety

Graph is safe for concurrent use during construction. Runner is immutable
and may be triggered concurrently; each run has its own results and
statuses. Work functions for independent nodes run concurrently and must
not share unsynchronized state.
*/
package taskgraph
