// Package store provides SQLite-backed durable storage for the
// dashboard: pages, workstreams and their query stacks, last-resolution
// snapshots, and the issue-detail cache.
//
// A workstream's stack is stored one row per step with an explicit
// position column - stack order is the whole point of a workstream, so
// it is never left to incidental row ordering. Snapshots carry the
// stack hash they were resolved from; readers compare it against the
// current stack and flag stale results instead of silently serving
// them.
package store
