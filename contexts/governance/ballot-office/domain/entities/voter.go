package entities

type voterRefKind int

const (
	voterRefDirect voterRefKind = iota + 1
	voterRefAnonymous
)

// VoterRef identifies the voter behind a ballot: either a directory user id
// (attributable elections) or a one-way voter hash (anonymous elections).
// Exactly one of the two is ever populated; the zero value is invalid.
type VoterRef struct {
	kind voterRefKind
	key  string
}

func DirectVoter(userID string) VoterRef {
	return VoterRef{kind: voterRefDirect, key: userID}
}

func AnonymousVoter(voterHash string) VoterRef {
	return VoterRef{kind: voterRefAnonymous, key: voterHash}
}

func (v VoterRef) IsZero() bool {
	return v.kind == 0 || v.key == ""
}

func (v VoterRef) IsAnonymous() bool {
	return v.kind == voterRefAnonymous
}

// UserID returns the directory user id for attributable voters, "" otherwise.
func (v VoterRef) UserID() string {
	if v.kind == voterRefDirect {
		return v.key
	}
	return ""
}

// VoterHash returns the anonymous voter hash, "" for attributable voters.
func (v VoterRef) VoterHash() string {
	if v.kind == voterRefAnonymous {
		return v.key
	}
	return ""
}

// Key is the uniqueness key used for duplicate detection and tallying. It is
// the user id or the voter hash depending on the variant.
func (v VoterRef) Key() string {
	return v.key
}
