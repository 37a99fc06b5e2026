// Package ballotoffice implements the ballot office inside the governance
// context.
//
// The module owns voter eligibility resolution (base rules, officer overrides,
// proxy authorizations), the voting token lifecycle for anonymous elections,
// vote recording with storage-enforced duplicate prevention, officer-mediated
// retraction, and the append-only vote audit trail. Business rules live in the
// application/domain layers; infrastructure stays behind ports and adapters.
package ballotoffice
