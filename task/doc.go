// Package task defines the stateful representation of a unit of work
// managed by taskq.
//
// A Task extends Spec with delivery and scheduling metadata: status,
// attempts, lease ownership, and timing. Spec holds only the fields a
// producer supplies when enqueuing work; Task holds everything the
// queue protocol and orchestrator maintain on top of it.
//
// Task values are typically returned by Store and Observer operations;
// further transitions are driven by passing their Id to Store. They are
// snapshots of storage state: mutating a returned Task does not affect
// the underlying row. Transitions must go through a Store.
package task
