package commands

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// VoterHash derives the anonymous voter key for one voter in one election.
// HMAC keyed by the organization salt keeps the mapping irreversible for
// anyone without the salt while staying deterministic for the issuer.
func VoterHash(orgSalt string, electionID string, userID string) string {
	mac := hmac.New(sha256.New, []byte(orgSalt))
	mac.Write([]byte(strings.TrimSpace(userID)))
	mac.Write([]byte("|"))
	mac.Write([]byte(strings.TrimSpace(electionID)))
	return hex.EncodeToString(mac.Sum(nil))
}

// voteSignature digests a vote's immutable fields with an election-scoped
// secret so later row mutation is detectable.
func voteSignature(
	secret string,
	electionID string,
	positionID string,
	candidateID string,
	voterKey string,
	rank int,
	castAt time.Time,
) string {
	payload, _ := json.Marshal(map[string]string{
		"election_id":  strings.TrimSpace(electionID),
		"position_id":  strings.TrimSpace(positionID),
		"candidate_id": strings.TrimSpace(candidateID),
		"voter_key":    strings.TrimSpace(voterKey),
		"rank":         strconv.Itoa(rank),
		"cast_at":      castAt.UTC().Format(time.RFC3339Nano),
	})
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyVoteSignature recomputes and compares a stored vote signature.
func VerifyVoteSignature(
	secret string,
	electionID string,
	positionID string,
	candidateID string,
	voterKey string,
	rank int,
	castAt time.Time,
	signature string,
) bool {
	expected := voteSignature(secret, electionID, positionID, candidateID, voterKey, rank, castAt)
	return hmac.Equal([]byte(expected), []byte(signature))
}
