package memory

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

type memberRecord struct {
	orgID  string
	status string
	roles  []string
}

// SentNotification captures Notifier calls for assertions.
type SentNotification struct {
	TemplateType string
	Recipients   []string
	Payload      map[string]any
}

// Store is the in-memory adapter backing tests and local wiring. RecordBallot
// emulates the partial unique indexes the Postgres schema enforces so the
// duplicate-vote behavior matches production.
type Store struct {
	mu sync.RWMutex

	votes       map[string]entities.Vote
	tokens      map[string]entities.VotingToken
	overrides   map[string]entities.VoterOverride
	proxies     map[string]entities.ProxyAuthorization
	audit       []entities.AuditEntry
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord
	elections   map[string]ports.ElectionProjection
	members     map[string]memberRecord
	attendance  map[string][]ports.Attendee
	notified    []SentNotification
	notifierErr error
}

func NewStore() *Store {
	return &Store{
		votes:      make(map[string]entities.Vote),
		tokens:     make(map[string]entities.VotingToken),
		overrides:  make(map[string]entities.VoterOverride),
		proxies:    make(map[string]entities.ProxyAuthorization),
		outbox:     make(map[string]outboxRecord),
		eventDedup: make(map[string]dedupRecord),
		elections:  make(map[string]ports.ElectionProjection),
		members:    make(map[string]memberRecord),
		attendance: make(map[string][]ports.Attendee),
	}
}

// --- test seeding -----------------------------------------------------------

func (s *Store) SetElection(election ports.ElectionProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[strings.TrimSpace(election.ElectionID)] = election
}

func (s *Store) SetMember(orgID string, userID string, status string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.TrimSpace(userID)] = memberRecord{
		orgID:  strings.TrimSpace(orgID),
		status: strings.TrimSpace(status),
		roles:  roles,
	}
}

func (s *Store) SetAttendees(meetingID string, attendees []ports.Attendee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[strings.TrimSpace(meetingID)] = attendees
}

func (s *Store) FailNotificationsWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifierErr = err
}

func (s *Store) Notifications() []SentNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SentNotification(nil), s.notified...)
}

// --- ElectionDirectory ------------------------------------------------------

func (s *Store) GetElection(_ context.Context, electionID string) (ports.ElectionProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return ports.ElectionProjection{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

// --- MemberDirectory --------------------------------------------------------

func (s *Store) ResolveRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[strings.TrimSpace(userID)]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), member.roles...), nil
}

func (s *Store) ResolveStatus(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[strings.TrimSpace(userID)]
	if !ok {
		return "", nil
	}
	return member.status, nil
}

func (s *Store) ListActiveMembers(_ context.Context, orgID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []string
	for userID, member := range s.members {
		if member.orgID == strings.TrimSpace(orgID) && strings.EqualFold(member.status, "active") {
			active = append(active, userID)
		}
	}
	sort.Strings(active)
	return active, nil
}

func (s *Store) IsMember(_ context.Context, orgID string, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	member, ok := s.members[strings.TrimSpace(userID)]
	return ok && member.orgID == strings.TrimSpace(orgID), nil
}

// --- MeetingDirectory -------------------------------------------------------

func (s *Store) GetAttendees(_ context.Context, meetingID string) ([]ports.Attendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.Attendee(nil), s.attendance[strings.TrimSpace(meetingID)]...), nil
}

// --- Notifier ---------------------------------------------------------------

func (s *Store) Send(_ context.Context, templateType string, recipients []string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifierErr != nil {
		return s.notifierErr
	}
	s.notified = append(s.notified, SentNotification{
		TemplateType: templateType,
		Recipients:   append([]string(nil), recipients...),
		Payload:      payload,
	})
	return nil
}

// --- TokenRepository --------------------------------------------------------

func (s *Store) SaveToken(_ context.Context, token entities.VotingToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[strings.TrimSpace(token.TokenID)] = token
	return nil
}

func (s *Store) GetTokenByValue(_ context.Context, tokenValue string) (entities.VotingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, token := range s.tokens {
		if token.Token == strings.TrimSpace(tokenValue) {
			return token, nil
		}
	}
	return entities.VotingToken{}, domainerrors.ErrTokenNotFound
}

func (s *Store) GetTokenByVoterHash(_ context.Context, electionID string, voterHash string) (entities.VotingToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, token := range s.tokens {
		if token.ElectionID == strings.TrimSpace(electionID) && token.VoterHash == strings.TrimSpace(voterHash) {
			return token, true, nil
		}
	}
	return entities.VotingToken{}, false, nil
}

func (s *Store) ListTokensByElection(_ context.Context, electionID string) ([]entities.VotingToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.VotingToken
	for _, token := range s.tokens {
		if token.ElectionID == strings.TrimSpace(electionID) {
			items = append(items, token)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TokenID < items[j].TokenID })
	return items, nil
}

// --- VoteRepository ---------------------------------------------------------

func uniquenessKey(vote entities.Vote) string {
	return strings.Join([]string{
		vote.ElectionID,
		vote.PositionID,
		vote.Voter.Key(),
		rankKey(vote.Rank),
	}, "|")
}

func rankKey(rank int) string {
	if rank <= 0 {
		return "single"
	}
	return "rank-" + strconv.Itoa(rank)
}

func (s *Store) RecordBallot(_ context.Context, votes []entities.Vote, token *entities.VotingToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.votes))
	for _, vote := range s.votes {
		if vote.Active() {
			existing[uniquenessKey(vote)] = struct{}{}
		}
	}
	incoming := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		key := uniquenessKey(vote)
		if _, clash := existing[key]; clash {
			return domainerrors.ErrDuplicateVote
		}
		if _, clash := incoming[key]; clash {
			return domainerrors.ErrDuplicateVote
		}
		incoming[key] = struct{}{}
	}

	for _, vote := range votes {
		s.votes[vote.VoteID] = vote
	}
	if token != nil {
		s.tokens[strings.TrimSpace(token.TokenID)] = *token
	}
	return nil
}

func (s *Store) GetVote(_ context.Context, voteID string) (entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[strings.TrimSpace(voteID)]
	if !ok {
		return entities.Vote{}, domainerrors.ErrVoteNotFound
	}
	return vote, nil
}

func (s *Store) SaveVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[strings.TrimSpace(vote.VoteID)] = vote
	return nil
}

func (s *Store) ListVotesByElection(_ context.Context, electionID string, includeDeleted bool) ([]entities.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Vote
	for _, vote := range s.votes {
		if vote.ElectionID != strings.TrimSpace(electionID) {
			continue
		}
		if !includeDeleted && !vote.Active() {
			continue
		}
		items = append(items, vote)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) HasActiveVote(_ context.Context, electionID string, positionID string, voterKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vote := range s.votes {
		if vote.Active() &&
			vote.ElectionID == strings.TrimSpace(electionID) &&
			vote.PositionID == strings.TrimSpace(positionID) &&
			vote.Voter.Key() == strings.TrimSpace(voterKey) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasRetractedVote(_ context.Context, electionID string, positionID string, voterKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vote := range s.votes {
		if !vote.Active() &&
			vote.ElectionID == strings.TrimSpace(electionID) &&
			vote.PositionID == strings.TrimSpace(positionID) &&
			vote.Voter.Key() == strings.TrimSpace(voterKey) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasProxyVoteForDelegator(_ context.Context, electionID string, positionID string, delegatorID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, vote := range s.votes {
		if vote.Active() &&
			vote.IsProxy &&
			vote.ElectionID == strings.TrimSpace(electionID) &&
			vote.PositionID == strings.TrimSpace(positionID) &&
			strings.EqualFold(vote.DelegatorID, strings.TrimSpace(delegatorID)) {
			return true, nil
		}
	}
	return false, nil
}

// --- OverrideRepository -----------------------------------------------------

func (s *Store) SaveOverride(_ context.Context, override entities.VoterOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[strings.TrimSpace(override.OverrideID)] = override
	return nil
}

func (s *Store) ListOverrides(_ context.Context, electionID string) ([]entities.VoterOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.VoterOverride
	for _, override := range s.overrides {
		if override.ElectionID == strings.TrimSpace(electionID) {
			items = append(items, override)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// --- ProxyRepository --------------------------------------------------------

func (s *Store) SaveAuthorization(_ context.Context, authorization entities.ProxyAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxies[strings.TrimSpace(authorization.AuthorizationID)] = authorization
	return nil
}

func (s *Store) GetAuthorization(_ context.Context, authorizationID string) (entities.ProxyAuthorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authorization, ok := s.proxies[strings.TrimSpace(authorizationID)]
	if !ok {
		return entities.ProxyAuthorization{}, domainerrors.ErrProxyNotAuthorized
	}
	return authorization, nil
}

func (s *Store) ListAuthorizationsByElection(_ context.Context, electionID string) ([]entities.ProxyAuthorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.ProxyAuthorization
	for _, authorization := range s.proxies {
		if authorization.ElectionID == strings.TrimSpace(electionID) {
			items = append(items, authorization)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// --- AuditLog ---------------------------------------------------------------

func (s *Store) Append(_ context.Context, entry entities.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListByElection(_ context.Context, electionID string) ([]entities.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.AuditEntry
	for _, entry := range s.audit {
		if entry.ElectionID == strings.TrimSpace(electionID) {
			items = append(items, entry)
		}
	}
	return items, nil
}

// --- Outbox / dedup ---------------------------------------------------------

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}
	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

// --- Clock / IDGenerator / TokenMinter --------------------------------------

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(base64.URLEncoding.EncodeToString(buf), "="), nil
}

var _ ports.ElectionDirectory = (*Store)(nil)
var _ ports.MemberDirectory = (*Store)(nil)
var _ ports.MeetingDirectory = (*Store)(nil)
var _ ports.Notifier = (*Store)(nil)
var _ ports.TokenRepository = (*Store)(nil)
var _ ports.VoteRepository = (*Store)(nil)
var _ ports.OverrideRepository = (*Store)(nil)
var _ ports.ProxyRepository = (*Store)(nil)
var _ ports.AuditLog = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
var _ ports.TokenMinter = (*Store)(nil)
