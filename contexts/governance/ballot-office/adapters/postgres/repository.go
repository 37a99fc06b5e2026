package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (ports.ElectionProjection, error) {
	var electionRow electionProjectionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&electionRow).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ElectionProjection{}, domainerrors.ErrElectionNotFound
		}
		return ports.ElectionProjection{}, r.logError("ballot_repo_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}

	var itemRows []ballotItemProjectionModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", electionRow.ID).
		Order("display_order ASC").
		Find(&itemRows).Error; err != nil {
		return ports.ElectionProjection{}, r.logError("ballot_repo_list_ballot_items_failed", err,
			"election_id", electionRow.ID,
		)
	}
	var candidateRows []candidateProjectionModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", electionRow.ID).
		Order("created_at ASC").
		Find(&candidateRows).Error; err != nil {
		return ports.ElectionProjection{}, r.logError("ballot_repo_list_candidates_failed", err,
			"election_id", electionRow.ID,
		)
	}

	candidatesByPosition := make(map[string][]ports.CandidateProjection, len(itemRows))
	for _, row := range candidateRows {
		candidatesByPosition[row.PositionID] = append(candidatesByPosition[row.PositionID], ports.CandidateProjection{
			CandidateID: row.ID,
			Name:        row.Name,
			Accepted:    strings.EqualFold(row.Status, "accepted"),
			WriteIn:     row.WriteIn,
		})
	}

	projection := ports.ElectionProjection{
		ElectionID: electionRow.ID,
		OrgID:      electionRow.OrgID,
		Status:     electionRow.Status,
		Anonymous:  electionRow.Anonymous,
	}
	if electionRow.MeetingID != nil {
		projection.MeetingID = strings.TrimSpace(*electionRow.MeetingID)
	}
	for _, row := range itemRows {
		projection.Positions = append(projection.Positions, ports.PositionProjection{
			PositionID:      row.ID,
			Title:           row.Title,
			EligibilityRule: row.EligibilityRule,
			Ranked:          row.Ranked,
			Candidates:      candidatesByPosition[row.ID],
		})
	}
	return projection, nil
}

func (r *Repository) SaveToken(ctx context.Context, token entities.VotingToken) error {
	row, err := tokenModelFromEntity(token)
	if err != nil {
		return r.logError("ballot_repo_token_encode_failed", err, "token_id", strings.TrimSpace(token.TokenID))
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"used":              row.Used,
			"positions_voted":   row.PositionsVoted,
			"access_count":      row.AccessCount,
			"first_accessed_at": row.FirstAccessedAt,
			"updated_at":        row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrConflict
		}
		return r.logError("ballot_repo_save_token_failed", create.Error,
			"token_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) GetTokenByValue(ctx context.Context, tokenValue string) (entities.VotingToken, error) {
	var row votingTokenModel
	err := r.db.WithContext(ctx).
		Where("token = ?", strings.TrimSpace(tokenValue)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotingToken{}, domainerrors.ErrTokenNotFound
		}
		return entities.VotingToken{}, r.logError("ballot_repo_get_token_failed", err)
	}
	return row.toEntity()
}

func (r *Repository) GetTokenByVoterHash(
	ctx context.Context,
	electionID string,
	voterHash string,
) (entities.VotingToken, bool, error) {
	var row votingTokenModel
	err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Where("voter_hash = ?", strings.TrimSpace(voterHash)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotingToken{}, false, nil
		}
		return entities.VotingToken{}, false, r.logError("ballot_repo_get_token_by_voter_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	token, err := row.toEntity()
	if err != nil {
		return entities.VotingToken{}, false, err
	}
	return token, true, nil
}

func (r *Repository) ListTokensByElection(ctx context.Context, electionID string) ([]entities.VotingToken, error) {
	var rows []votingTokenModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_tokens_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.VotingToken, 0, len(rows))
	for _, row := range rows {
		token, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, token)
	}
	return items, nil
}

// RecordBallot inserts every vote row and applies the token update in one
// transaction. The partial unique indexes on votes are the concurrency
// boundary: a 23505 from any insert rolls the whole cast back, so a redeemed
// token can never exist without its votes.
func (r *Repository) RecordBallot(ctx context.Context, votes []entities.Vote, token *entities.VotingToken) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, vote := range votes {
			row := voteModelFromEntity(vote)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		if token != nil {
			row, err := tokenModelFromEntity(*token)
			if err != nil {
				return err
			}
			if err := tx.Model(&votingTokenModel{}).
				Where("id = ?", row.ID).
				Updates(map[string]any{
					"used":              row.Used,
					"positions_voted":   row.PositionsVoted,
					"access_count":      row.AccessCount,
					"first_accessed_at": row.FirstAccessedAt,
					"updated_at":        row.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateVote
		}
		electionID := ""
		if len(votes) > 0 {
			electionID = votes[0].ElectionID
		}
		return r.logError("ballot_repo_record_ballot_failed", err,
			"election_id", electionID,
			"vote_count", len(votes),
		)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.Vote, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, domainerrors.ErrVoteNotFound
		}
		return entities.Vote{}, r.logError("ballot_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	return row.toEntity(), nil
}

func (r *Repository) SaveVote(ctx context.Context, vote entities.Vote) error {
	row := voteModelFromEntity(vote)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"deleted_at":      row.DeletedAt,
			"deleted_by":      row.DeletedBy,
			"deletion_reason": row.DeletionReason,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrDuplicateVote
		}
		return r.logError("ballot_repo_save_vote_failed", create.Error,
			"vote_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) ListVotesByElection(
	ctx context.Context,
	electionID string,
	includeDeleted bool,
) ([]entities.Vote, error) {
	tx := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID))
	if !includeDeleted {
		tx = tx.Where("deleted_at IS NULL")
	}
	var rows []voteModel
	if err := tx.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_votes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) HasActiveVote(
	ctx context.Context,
	electionID string,
	positionID string,
	voterKey string,
) (bool, error) {
	return r.voteExists(ctx, electionID, positionID, voterKey, false)
}

func (r *Repository) HasRetractedVote(
	ctx context.Context,
	electionID string,
	positionID string,
	voterKey string,
) (bool, error) {
	return r.voteExists(ctx, electionID, positionID, voterKey, true)
}

func (r *Repository) voteExists(
	ctx context.Context,
	electionID string,
	positionID string,
	voterKey string,
	deleted bool,
) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&voteModel{}).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Where("position_id = ?", strings.TrimSpace(positionID)).
		Where("voter_id = ? OR voter_hash = ?", strings.TrimSpace(voterKey), strings.TrimSpace(voterKey))
	if deleted {
		tx = tx.Where("deleted_at IS NOT NULL")
	} else {
		tx = tx.Where("deleted_at IS NULL")
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, r.logError("ballot_repo_vote_exists_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"position_id", strings.TrimSpace(positionID),
		)
	}
	return count > 0, nil
}

func (r *Repository) HasProxyVoteForDelegator(
	ctx context.Context,
	electionID string,
	positionID string,
	delegatorID string,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&voteModel{}).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Where("position_id = ?", strings.TrimSpace(positionID)).
		Where("is_proxy = ?", true).
		Where("delegator_id = ?", strings.TrimSpace(delegatorID)).
		Where("deleted_at IS NULL").
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("ballot_repo_proxy_vote_exists_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"position_id", strings.TrimSpace(positionID),
		)
	}
	return count > 0, nil
}

func (r *Repository) SaveOverride(ctx context.Context, override entities.VoterOverride) error {
	row := overrideModelFromEntity(override)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"action": row.Action,
			"reason": row.Reason,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_save_override_failed", create.Error,
			"override_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) ListOverrides(ctx context.Context, electionID string) ([]entities.VoterOverride, error) {
	var rows []voterOverrideModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_overrides_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.VoterOverride, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SaveAuthorization(ctx context.Context, authorization entities.ProxyAuthorization) error {
	row := proxyModelFromEntity(authorization)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"position_scope": row.PositionScope,
			"expires_at":     row.ExpiresAt,
			"revoked":        row.Revoked,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_save_authorization_failed", create.Error,
			"authorization_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) GetAuthorization(ctx context.Context, authorizationID string) (entities.ProxyAuthorization, error) {
	var row proxyAuthorizationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(authorizationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ProxyAuthorization{}, domainerrors.ErrProxyNotAuthorized
		}
		return entities.ProxyAuthorization{}, r.logError("ballot_repo_get_authorization_failed", err,
			"authorization_id", strings.TrimSpace(authorizationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListAuthorizationsByElection(
	ctx context.Context,
	electionID string,
) ([]entities.ProxyAuthorization, error) {
	var rows []proxyAuthorizationModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_authorizations_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.ProxyAuthorization, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) Append(ctx context.Context, entry entities.AuditEntry) error {
	row := auditModelFromEntity(entry)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("ballot_repo_append_audit_failed", err,
			"entry_id", row.ID,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) ListByElection(ctx context.Context, electionID string) ([]entities.AuditEntry, error) {
	var rows []auditEntryModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_audit_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]entities.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ballot_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ballot_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return r.logError("ballot_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ballot_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("ballot_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("ballot_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
		return false, domainerrors.ErrConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "governance/ballot-office",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ballot repository operation failed", fields...)
	return err
}

type votingTokenModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	Token           string     `gorm:"column:token"`
	ElectionID      string     `gorm:"column:election_id"`
	VoterHash       string     `gorm:"column:voter_hash"`
	ExpiresAt       time.Time  `gorm:"column:expires_at"`
	Used            bool       `gorm:"column:used"`
	PositionsVoted  []byte     `gorm:"column:positions_voted"`
	AccessCount     int        `gorm:"column:access_count"`
	FirstAccessedAt *time.Time `gorm:"column:first_accessed_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (votingTokenModel) TableName() string {
	return "voting_tokens"
}

func tokenModelFromEntity(token entities.VotingToken) (votingTokenModel, error) {
	positions := token.PositionsVoted
	if positions == nil {
		positions = []string{}
	}
	encoded, err := json.Marshal(positions)
	if err != nil {
		return votingTokenModel{}, err
	}
	row := votingTokenModel{
		ID:              strings.TrimSpace(token.TokenID),
		Token:           strings.TrimSpace(token.Token),
		ElectionID:      strings.TrimSpace(token.ElectionID),
		VoterHash:       strings.TrimSpace(token.VoterHash),
		ExpiresAt:       token.ExpiresAt.UTC(),
		Used:            token.Used,
		PositionsVoted:  encoded,
		AccessCount:     token.AccessCount,
		FirstAccessedAt: normalizeOptionalTime(token.FirstAccessedAt),
		CreatedAt:       token.CreatedAt.UTC(),
		UpdatedAt:       token.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row, nil
}

func (m votingTokenModel) toEntity() (entities.VotingToken, error) {
	var positions []string
	if len(m.PositionsVoted) > 0 {
		if err := json.Unmarshal(m.PositionsVoted, &positions); err != nil {
			return entities.VotingToken{}, err
		}
	}
	return entities.VotingToken{
		TokenID:         m.ID,
		Token:           m.Token,
		ElectionID:      m.ElectionID,
		VoterHash:       m.VoterHash,
		ExpiresAt:       m.ExpiresAt.UTC(),
		Used:            m.Used,
		PositionsVoted:  positions,
		AccessCount:     m.AccessCount,
		FirstAccessedAt: normalizeOptionalTime(m.FirstAccessedAt),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}, nil
}

type voteModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	ElectionID      string     `gorm:"column:election_id"`
	PositionID      string     `gorm:"column:position_id"`
	CandidateID     string     `gorm:"column:candidate_id"`
	VoterID         *string    `gorm:"column:voter_id"`
	VoterHash       *string    `gorm:"column:voter_hash"`
	VoteRank        *int       `gorm:"column:vote_rank"`
	IsProxy         bool       `gorm:"column:is_proxy"`
	ProxyVoterID    string     `gorm:"column:proxy_voter_id"`
	DelegatorID     string     `gorm:"column:delegator_id"`
	AuthorizationID string     `gorm:"column:authorization_id"`
	Signature       string     `gorm:"column:signature"`
	DeletedAt       *time.Time `gorm:"column:deleted_at"`
	DeletedBy       string     `gorm:"column:deleted_by"`
	DeletionReason  string     `gorm:"column:deletion_reason"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	row := voteModel{
		ID:              strings.TrimSpace(vote.VoteID),
		ElectionID:      strings.TrimSpace(vote.ElectionID),
		PositionID:      strings.TrimSpace(vote.PositionID),
		CandidateID:     strings.TrimSpace(vote.CandidateID),
		IsProxy:         vote.IsProxy,
		ProxyVoterID:    strings.TrimSpace(vote.ProxyVoterID),
		DelegatorID:     strings.TrimSpace(vote.DelegatorID),
		AuthorizationID: strings.TrimSpace(vote.AuthorizationID),
		Signature:       strings.TrimSpace(vote.Signature),
		DeletedAt:       normalizeOptionalTime(vote.DeletedAt),
		DeletedBy:       strings.TrimSpace(vote.DeletedBy),
		DeletionReason:  strings.TrimSpace(vote.DeletionReason),
		CreatedAt:       vote.CreatedAt.UTC(),
	}
	if vote.Voter.IsAnonymous() {
		voterHash := vote.Voter.VoterHash()
		row.VoterHash = &voterHash
	} else {
		voterID := vote.Voter.UserID()
		row.VoterID = &voterID
	}
	if vote.Rank > 0 {
		rank := vote.Rank
		row.VoteRank = &rank
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m voteModel) toEntity() entities.Vote {
	var voter entities.VoterRef
	switch {
	case m.VoterID != nil:
		voter = entities.DirectVoter(strings.TrimSpace(*m.VoterID))
	case m.VoterHash != nil:
		voter = entities.AnonymousVoter(strings.TrimSpace(*m.VoterHash))
	}
	rank := 0
	if m.VoteRank != nil {
		rank = *m.VoteRank
	}
	return entities.Vote{
		VoteID:          m.ID,
		ElectionID:      m.ElectionID,
		PositionID:      m.PositionID,
		CandidateID:     m.CandidateID,
		Voter:           voter,
		Rank:            rank,
		IsProxy:         m.IsProxy,
		ProxyVoterID:    m.ProxyVoterID,
		DelegatorID:     m.DelegatorID,
		AuthorizationID: m.AuthorizationID,
		Signature:       m.Signature,
		DeletedAt:       normalizeOptionalTime(m.DeletedAt),
		DeletedBy:       m.DeletedBy,
		DeletionReason:  m.DeletionReason,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

type voterOverrideModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	UserID     string    `gorm:"column:user_id"`
	Action     string    `gorm:"column:action"`
	Reason     string    `gorm:"column:reason"`
	GrantedBy  string    `gorm:"column:granted_by"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (voterOverrideModel) TableName() string {
	return "voter_overrides"
}

func overrideModelFromEntity(override entities.VoterOverride) voterOverrideModel {
	row := voterOverrideModel{
		ID:         strings.TrimSpace(override.OverrideID),
		ElectionID: strings.TrimSpace(override.ElectionID),
		UserID:     strings.TrimSpace(override.UserID),
		Action:     string(override.Action),
		Reason:     strings.TrimSpace(override.Reason),
		GrantedBy:  strings.TrimSpace(override.GrantedBy),
		CreatedAt:  override.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m voterOverrideModel) toEntity() entities.VoterOverride {
	return entities.VoterOverride{
		OverrideID: m.ID,
		ElectionID: m.ElectionID,
		UserID:     m.UserID,
		Action:     entities.OverrideAction(m.Action),
		Reason:     m.Reason,
		GrantedBy:  m.GrantedBy,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type proxyAuthorizationModel struct {
	ID            string     `gorm:"column:id;primaryKey"`
	ElectionID    string     `gorm:"column:election_id"`
	DelegatorID   string     `gorm:"column:delegator_id"`
	ProxyHolderID string     `gorm:"column:proxy_holder_id"`
	PositionScope string     `gorm:"column:position_scope"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	Revoked       bool       `gorm:"column:revoked"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (proxyAuthorizationModel) TableName() string {
	return "proxy_authorizations"
}

func proxyModelFromEntity(authorization entities.ProxyAuthorization) proxyAuthorizationModel {
	row := proxyAuthorizationModel{
		ID:            strings.TrimSpace(authorization.AuthorizationID),
		ElectionID:    strings.TrimSpace(authorization.ElectionID),
		DelegatorID:   strings.TrimSpace(authorization.DelegatorID),
		ProxyHolderID: strings.TrimSpace(authorization.ProxyHolderID),
		PositionScope: strings.TrimSpace(authorization.PositionScope),
		ExpiresAt:     normalizeOptionalTime(authorization.ExpiresAt),
		Revoked:       authorization.Revoked,
		CreatedAt:     authorization.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m proxyAuthorizationModel) toEntity() entities.ProxyAuthorization {
	return entities.ProxyAuthorization{
		AuthorizationID: m.ID,
		ElectionID:      m.ElectionID,
		DelegatorID:     m.DelegatorID,
		ProxyHolderID:   m.ProxyHolderID,
		PositionScope:   m.PositionScope,
		ExpiresAt:       normalizeOptionalTime(m.ExpiresAt),
		Revoked:         m.Revoked,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

type auditEntryModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	PositionID string    `gorm:"column:position_id"`
	VoterKey   string    `gorm:"column:voter_key"`
	Outcome    string    `gorm:"column:outcome"`
	Detail     string    `gorm:"column:detail"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (auditEntryModel) TableName() string {
	return "vote_audit_log"
}

func auditModelFromEntity(entry entities.AuditEntry) auditEntryModel {
	row := auditEntryModel{
		ID:         strings.TrimSpace(entry.EntryID),
		ElectionID: strings.TrimSpace(entry.ElectionID),
		PositionID: strings.TrimSpace(entry.PositionID),
		VoterKey:   strings.TrimSpace(entry.VoterKey),
		Outcome:    strings.TrimSpace(entry.Outcome),
		Detail:     strings.TrimSpace(entry.Detail),
		OccurredAt: entry.OccurredAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.OccurredAt.IsZero() {
		row.OccurredAt = time.Now().UTC()
	}
	return row
}

func (m auditEntryModel) toEntity() entities.AuditEntry {
	return entities.AuditEntry{
		EntryID:    m.ID,
		ElectionID: m.ElectionID,
		PositionID: m.PositionID,
		VoterKey:   m.VoterKey,
		Outcome:    m.Outcome,
		Detail:     m.Detail,
		OccurredAt: m.OccurredAt.UTC(),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ballot_office_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "ballot_office_event_dedup"
}

type electionProjectionModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	OrgID     string  `gorm:"column:org_id"`
	Status    string  `gorm:"column:status"`
	Anonymous bool    `gorm:"column:anonymous"`
	MeetingID *string `gorm:"column:meeting_id"`
}

func (electionProjectionModel) TableName() string {
	return "elections"
}

type ballotItemProjectionModel struct {
	ID              string `gorm:"column:id;primaryKey"`
	ElectionID      string `gorm:"column:election_id"`
	Title           string `gorm:"column:title"`
	EligibilityRule string `gorm:"column:eligibility_rule"`
	Ranked          bool   `gorm:"column:ranked"`
	DisplayOrder    int    `gorm:"column:display_order"`
}

func (ballotItemProjectionModel) TableName() string {
	return "ballot_items"
}

type candidateProjectionModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	PositionID string    `gorm:"column:position_id"`
	Name       string    `gorm:"column:name"`
	Status     string    `gorm:"column:status"`
	WriteIn    bool      `gorm:"column:write_in"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (candidateProjectionModel) TableName() string {
	return "candidates"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ElectionDirectory = (*Repository)(nil)
var _ ports.TokenRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.OverrideRepository = (*Repository)(nil)
var _ ports.ProxyRepository = (*Repository)(nil)
var _ ports.AuditLog = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
