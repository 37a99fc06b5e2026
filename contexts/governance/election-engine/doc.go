// Package electionengine implements the election engine inside the governance
// context.
//
// The module owns election configuration and lifecycle, the quorum gate, vote
// tallying under every supported method and victory condition, runoff
// orchestration for unresolved positions, and auditable rollback of lifecycle
// state. Votes themselves are owned by the ballot office; the engine reads
// them as a projection at tally time.
package electionengine
