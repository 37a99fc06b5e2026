package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	"ballotbox/contexts/governance/election-engine/ports"

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

// SentNotification captures Notifier calls for assertions.
type SentNotification struct {
	TemplateType string
	Recipients   []string
	Payload      map[string]any
}

// Store is the in-memory adapter backing tests and local wiring.
type Store struct {
	mu sync.RWMutex

	elections  map[string]entities.Election
	results    map[string][]entities.PositionResult
	votes      map[string][]ports.BallotVote
	members    map[string][]string
	attendance map[string][]ports.Attendee
	outbox     map[string]outboxRecord
	eventDedup map[string]dedupRecord
	notified   []SentNotification
}

func NewStore() *Store {
	return &Store{
		elections:  make(map[string]entities.Election),
		results:    make(map[string][]entities.PositionResult),
		votes:      make(map[string][]ports.BallotVote),
		members:    make(map[string][]string),
		attendance: make(map[string][]ports.Attendee),
		outbox:     make(map[string]outboxRecord),
		eventDedup: make(map[string]dedupRecord),
	}
}

// --- test seeding -----------------------------------------------------------

func (s *Store) SetActiveMembers(orgID string, userIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[strings.TrimSpace(orgID)] = append([]string(nil), userIDs...)
}

func (s *Store) SetAttendees(meetingID string, attendees []ports.Attendee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendance[strings.TrimSpace(meetingID)] = attendees
}

func (s *Store) SetVotes(electionID string, votes []ports.BallotVote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[strings.TrimSpace(electionID)] = append([]ports.BallotVote(nil), votes...)
}

func (s *Store) Notifications() []SentNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SentNotification(nil), s.notified...)
}

// --- ElectionRepository -----------------------------------------------------

func (s *Store) SaveElection(_ context.Context, election entities.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[strings.TrimSpace(election.ElectionID)] = election
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election, nil
}

func (s *Store) ListElectionsByOrg(_ context.Context, orgID string) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Election
	for _, election := range s.elections {
		if election.OrgID == strings.TrimSpace(orgID) {
			items = append(items, election)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) ListChildElections(_ context.Context, parentElectionID string) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []entities.Election
	for _, election := range s.elections {
		if election.IsRunoff && election.ParentElectionID == strings.TrimSpace(parentElectionID) {
			items = append(items, election)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (s *Store) SaveResults(_ context.Context, electionID string, results []entities.PositionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(electionID)] = append([]entities.PositionResult(nil), results...)
	return nil
}

func (s *Store) GetResults(_ context.Context, electionID string) ([]entities.PositionResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results, ok := s.results[strings.TrimSpace(electionID)]
	if !ok {
		return nil, false, nil
	}
	return append([]entities.PositionResult(nil), results...), true, nil
}

func (s *Store) DeleteResults(_ context.Context, electionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, strings.TrimSpace(electionID))
	return nil
}

// --- BallotReader -----------------------------------------------------------

func (s *Store) ListActiveVotes(_ context.Context, electionID string) ([]ports.BallotVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.BallotVote(nil), s.votes[strings.TrimSpace(electionID)]...), nil
}

// --- MemberDirectory --------------------------------------------------------

func (s *Store) ActiveMemberCount(_ context.Context, orgID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[strings.TrimSpace(orgID)]), nil
}

func (s *Store) ListActiveMembers(_ context.Context, orgID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := append([]string(nil), s.members[strings.TrimSpace(orgID)]...)
	sort.Strings(members)
	return members, nil
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
	s.notified = append(s.notified, SentNotification{
		TemplateType: templateType,
		Recipients:   append([]string(nil), recipients...),
		Payload:      payload,
	})
	return nil
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

// --- Clock / IDGenerator ----------------------------------------------------

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.ElectionRepository = (*Store)(nil)
var _ ports.BallotReader = (*Store)(nil)
var _ ports.MemberDirectory = (*Store)(nil)
var _ ports.MeetingDirectory = (*Store)(nil)
var _ ports.Notifier = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.EventDedupStore = (*Store)(nil)
