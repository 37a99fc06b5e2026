package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	"ballotbox/contexts/governance/election-engine/ports"

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

// SaveElection upserts the aggregate root and replaces its ballot items and
// candidates wholesale. Rollback records are append-only: existing rows are
// never updated.
func (r *Repository) SaveElection(ctx context.Context, election entities.Election) error {
	electionRow := electionModelFromEntity(election)
	itemRows, candidateRows := ballotRowsFromEntity(election)
	rollbackRows := rollbackRowsFromEntity(election)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&electionRow).Error; err != nil {
			return err
		}
		if err := tx.Where("election_id = ?", electionRow.ID).Delete(&candidateModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("election_id = ?", electionRow.ID).Delete(&ballotItemModel{}).Error; err != nil {
			return err
		}
		if len(itemRows) > 0 {
			if err := tx.Create(&itemRows).Error; err != nil {
				return err
			}
		}
		if len(candidateRows) > 0 {
			if err := tx.Create(&candidateRows).Error; err != nil {
				return err
			}
		}
		if len(rollbackRows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoNothing: true,
			}).Create(&rollbackRows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("election_repo_save_failed", err, "election_id", electionRow.ID)
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	var row electionModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(electionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, r.logError("election_repo_get_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return r.loadAggregate(ctx, row)
}

func (r *Repository) ListElectionsByOrg(ctx context.Context, orgID string) ([]entities.Election, error) {
	var rows []electionModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", strings.TrimSpace(orgID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_by_org_failed", err,
			"org_id", strings.TrimSpace(orgID),
		)
	}
	return r.loadAggregates(ctx, rows)
}

func (r *Repository) ListChildElections(ctx context.Context, parentElectionID string) ([]entities.Election, error) {
	var rows []electionModel
	if err := r.db.WithContext(ctx).
		Where("parent_election_id = ?", strings.TrimSpace(parentElectionID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_children_failed", err,
			"parent_election_id", strings.TrimSpace(parentElectionID),
		)
	}
	return r.loadAggregates(ctx, rows)
}

func (r *Repository) loadAggregates(ctx context.Context, rows []electionModel) ([]entities.Election, error) {
	items := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		election, err := r.loadAggregate(ctx, row)
		if err != nil {
			return nil, err
		}
		items = append(items, election)
	}
	return items, nil
}

func (r *Repository) loadAggregate(ctx context.Context, row electionModel) (entities.Election, error) {
	var itemRows []ballotItemModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", row.ID).
		Order("display_order ASC").
		Find(&itemRows).Error; err != nil {
		return entities.Election{}, r.logError("election_repo_load_ballot_items_failed", err,
			"election_id", row.ID,
		)
	}
	var candidateRows []candidateModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", row.ID).
		Order("created_at ASC").
		Find(&candidateRows).Error; err != nil {
		return entities.Election{}, r.logError("election_repo_load_candidates_failed", err,
			"election_id", row.ID,
		)
	}
	var rollbackRows []rollbackRecordModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", row.ID).
		Order("occurred_at ASC").
		Find(&rollbackRows).Error; err != nil {
		return entities.Election{}, r.logError("election_repo_load_rollback_log_failed", err,
			"election_id", row.ID,
		)
	}

	election := row.toEntity()
	candidatesByPosition := make(map[string][]entities.Candidate, len(itemRows))
	for _, candidateRow := range candidateRows {
		candidatesByPosition[candidateRow.PositionID] = append(
			candidatesByPosition[candidateRow.PositionID],
			candidateRow.toEntity(),
		)
	}
	for _, itemRow := range itemRows {
		item := itemRow.toEntity()
		item.Candidates = candidatesByPosition[itemRow.ID]
		election.BallotItems = append(election.BallotItems, item)
	}
	for _, rollbackRow := range rollbackRows {
		election.RollbackHistory = append(election.RollbackHistory, rollbackRow.toEntity())
	}
	return election, nil
}

// SaveResults replaces any previously committed results for the election.
func (r *Repository) SaveResults(ctx context.Context, electionID string, results []entities.PositionResult) error {
	rows := make([]positionResultModel, 0, len(results))
	for _, result := range results {
		row, err := resultModelFromEntity(strings.TrimSpace(electionID), result)
		if err != nil {
			return r.logError("election_repo_result_encode_failed", err,
				"election_id", strings.TrimSpace(electionID),
				"position_id", result.PositionID,
			)
		}
		rows = append(rows, row)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("election_id = ?", strings.TrimSpace(electionID)).
			Delete(&positionResultModel{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.logError("election_repo_save_results_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return nil
}

func (r *Repository) GetResults(ctx context.Context, electionID string) ([]entities.PositionResult, bool, error) {
	var rows []positionResultModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Order("position_id ASC").
		Find(&rows).Error; err != nil {
		return nil, false, r.logError("election_repo_get_results_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	results := make([]entities.PositionResult, 0, len(rows))
	for _, row := range rows {
		result, err := row.toEntity()
		if err != nil {
			return nil, false, r.logError("election_repo_result_decode_failed", err,
				"election_id", strings.TrimSpace(electionID),
				"position_id", row.PositionID,
			)
		}
		results = append(results, result)
	}
	return results, true, nil
}

func (r *Repository) DeleteResults(ctx context.Context, electionID string) error {
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Delete(&positionResultModel{}).Error; err != nil {
		return r.logError("election_repo_delete_results_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return nil
}

// ListActiveVotes projects the vote rows owned by the ballot office. Retracted
// votes carry deleted_at and never reach the tally.
func (r *Repository) ListActiveVotes(ctx context.Context, electionID string) ([]ports.BallotVote, error) {
	var rows []ballotVoteModel
	if err := r.db.WithContext(ctx).
		Where("election_id = ?", strings.TrimSpace(electionID)).
		Where("deleted_at IS NULL").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_votes_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	items := make([]ports.BallotVote, 0, len(rows))
	for _, row := range rows {
		vote := ports.BallotVote{
			PositionID:  row.PositionID,
			CandidateID: row.CandidateID,
			IsProxy:     row.IsProxy,
			CastAt:      row.CreatedAt.UTC(),
		}
		switch {
		case row.VoterID != nil:
			vote.VoterKey = strings.TrimSpace(*row.VoterID)
		case row.VoterHash != nil:
			vote.VoterKey = strings.TrimSpace(*row.VoterHash)
		}
		if row.VoteRank != nil {
			vote.Rank = *row.VoteRank
		}
		items = append(items, vote)
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("election_repo_append_outbox_marshal_failed", err,
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
		return r.logError("election_repo_append_outbox_insert_failed", create.Error,
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
		return r.logError("election_repo_append_outbox_load_existing_failed", err,
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
		return nil, r.logError("election_repo_list_pending_outbox_failed", err, "limit", limit)
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
		return r.logError("election_repo_mark_outbox_published_failed", result.Error,
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
		return false, r.logError("election_repo_reserve_event_failed", create.Error,
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
		return false, r.logError("election_repo_reserve_event_load_existing_failed", err,
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
		"module", "governance/election-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

type electionModel struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	OrgID                 string    `gorm:"column:org_id"`
	Title                 string    `gorm:"column:title"`
	Description           string    `gorm:"column:description"`
	Status                string    `gorm:"column:status"`
	Anonymous             bool      `gorm:"column:anonymous"`
	MeetingID             *string   `gorm:"column:meeting_id"`
	VotingMethod          string    `gorm:"column:voting_method"`
	VictoryCondition      string    `gorm:"column:victory_condition"`
	VictoryThreshold      int       `gorm:"column:victory_threshold"`
	VictoryPercentage     float64   `gorm:"column:victory_percentage"`
	EnableRunoffs         bool      `gorm:"column:enable_runoffs"`
	RunoffType            string    `gorm:"column:runoff_type"`
	MaxRunoffRounds       int       `gorm:"column:max_runoff_rounds"`
	IsRunoff              bool      `gorm:"column:is_runoff"`
	ParentElectionID      *string   `gorm:"column:parent_election_id"`
	RunoffRound           int       `gorm:"column:runoff_round"`
	CancelledByRollbackID string    `gorm:"column:cancelled_by_rollback_id"`
	QuorumType            string    `gorm:"column:quorum_type"`
	QuorumThreshold       float64   `gorm:"column:quorum_threshold"`
	CreatedBy             string    `gorm:"column:created_by"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	row := electionModel{
		ID:                    strings.TrimSpace(election.ElectionID),
		OrgID:                 strings.TrimSpace(election.OrgID),
		Title:                 strings.TrimSpace(election.Title),
		Description:           strings.TrimSpace(election.Description),
		Status:                string(election.Status),
		Anonymous:             election.Anonymous,
		VotingMethod:          string(election.VotingMethod),
		VictoryCondition:      string(election.VictoryCondition),
		VictoryThreshold:      election.VictoryThreshold,
		VictoryPercentage:     election.VictoryPercentage,
		EnableRunoffs:         election.EnableRunoffs,
		RunoffType:            string(election.RunoffType),
		MaxRunoffRounds:       election.MaxRunoffRounds,
		IsRunoff:              election.IsRunoff,
		RunoffRound:           election.RunoffRound,
		CancelledByRollbackID: strings.TrimSpace(election.CancelledByRollbackID),
		QuorumType:            string(election.QuorumType),
		QuorumThreshold:       election.QuorumThreshold,
		CreatedBy:             strings.TrimSpace(election.CreatedBy),
		CreatedAt:             election.CreatedAt.UTC(),
		UpdatedAt:             election.UpdatedAt.UTC(),
	}
	if meetingID := strings.TrimSpace(election.MeetingID); meetingID != "" {
		row.MeetingID = &meetingID
	}
	if parentID := strings.TrimSpace(election.ParentElectionID); parentID != "" {
		row.ParentElectionID = &parentID
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m electionModel) toEntity() entities.Election {
	election := entities.Election{
		ElectionID:            m.ID,
		OrgID:                 m.OrgID,
		Title:                 m.Title,
		Description:           m.Description,
		Status:                entities.ElectionStatus(m.Status),
		Anonymous:             m.Anonymous,
		VotingMethod:          entities.VotingMethod(m.VotingMethod),
		VictoryCondition:      entities.VictoryCondition(m.VictoryCondition),
		VictoryThreshold:      m.VictoryThreshold,
		VictoryPercentage:     m.VictoryPercentage,
		EnableRunoffs:         m.EnableRunoffs,
		RunoffType:            entities.RunoffType(m.RunoffType),
		MaxRunoffRounds:       m.MaxRunoffRounds,
		IsRunoff:              m.IsRunoff,
		RunoffRound:           m.RunoffRound,
		CancelledByRollbackID: m.CancelledByRollbackID,
		QuorumType:            entities.QuorumType(m.QuorumType),
		QuorumThreshold:       m.QuorumThreshold,
		CreatedBy:             m.CreatedBy,
		CreatedAt:             m.CreatedAt.UTC(),
		UpdatedAt:             m.UpdatedAt.UTC(),
	}
	if m.MeetingID != nil {
		election.MeetingID = strings.TrimSpace(*m.MeetingID)
	}
	if m.ParentElectionID != nil {
		election.ParentElectionID = strings.TrimSpace(*m.ParentElectionID)
	}
	return election
}

type ballotItemModel struct {
	ID              string `gorm:"column:id;primaryKey"`
	ElectionID      string `gorm:"column:election_id"`
	Title           string `gorm:"column:title"`
	EligibilityRule string `gorm:"column:eligibility_rule"`
	Ranked          bool   `gorm:"column:ranked"`
	DisplayOrder    int    `gorm:"column:display_order"`
}

func (ballotItemModel) TableName() string {
	return "ballot_items"
}

func (m ballotItemModel) toEntity() entities.BallotItem {
	return entities.BallotItem{
		PositionID:      m.ID,
		Title:           m.Title,
		EligibilityRule: m.EligibilityRule,
		Ranked:          m.Ranked,
		DisplayOrder:    m.DisplayOrder,
	}
}

type candidateModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	PositionID string    `gorm:"column:position_id"`
	Name       string    `gorm:"column:name"`
	Statement  string    `gorm:"column:statement"`
	Status     string    `gorm:"column:status"`
	WriteIn    bool      `gorm:"column:write_in"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (candidateModel) TableName() string {
	return "candidates"
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		CandidateID: m.ID,
		Name:        m.Name,
		Statement:   m.Statement,
		Status:      entities.CandidateStatus(m.Status),
		WriteIn:     m.WriteIn,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func ballotRowsFromEntity(election entities.Election) ([]ballotItemModel, []candidateModel) {
	var itemRows []ballotItemModel
	var candidateRows []candidateModel
	for _, item := range election.BallotItems {
		itemRows = append(itemRows, ballotItemModel{
			ID:              strings.TrimSpace(item.PositionID),
			ElectionID:      strings.TrimSpace(election.ElectionID),
			Title:           strings.TrimSpace(item.Title),
			EligibilityRule: strings.TrimSpace(item.EligibilityRule),
			Ranked:          item.Ranked,
			DisplayOrder:    item.DisplayOrder,
		})
		for _, candidate := range item.Candidates {
			createdAt := candidate.CreatedAt.UTC()
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			candidateRows = append(candidateRows, candidateModel{
				ID:         strings.TrimSpace(candidate.CandidateID),
				ElectionID: strings.TrimSpace(election.ElectionID),
				PositionID: strings.TrimSpace(item.PositionID),
				Name:       strings.TrimSpace(candidate.Name),
				Statement:  strings.TrimSpace(candidate.Statement),
				Status:     string(candidate.Status),
				WriteIn:    candidate.WriteIn,
				CreatedAt:  createdAt,
			})
		}
	}
	return itemRows, candidateRows
}

type rollbackRecordModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ElectionID string    `gorm:"column:election_id"`
	FromState  string    `gorm:"column:from_state"`
	ToState    string    `gorm:"column:to_state"`
	Reason     string    `gorm:"column:reason"`
	Actor      string    `gorm:"column:actor"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (rollbackRecordModel) TableName() string {
	return "election_rollback_log"
}

func (m rollbackRecordModel) toEntity() entities.RollbackRecord {
	return entities.RollbackRecord{
		RecordID:   m.ID,
		FromState:  entities.ElectionStatus(m.FromState),
		ToState:    entities.ElectionStatus(m.ToState),
		Reason:     m.Reason,
		Actor:      m.Actor,
		OccurredAt: m.OccurredAt.UTC(),
	}
}

func rollbackRowsFromEntity(election entities.Election) []rollbackRecordModel {
	rows := make([]rollbackRecordModel, 0, len(election.RollbackHistory))
	for _, record := range election.RollbackHistory {
		rows = append(rows, rollbackRecordModel{
			ID:         strings.TrimSpace(record.RecordID),
			ElectionID: strings.TrimSpace(election.ElectionID),
			FromState:  string(record.FromState),
			ToState:    string(record.ToState),
			Reason:     strings.TrimSpace(record.Reason),
			Actor:      strings.TrimSpace(record.Actor),
			OccurredAt: record.OccurredAt.UTC(),
		})
	}
	return rows
}

type positionResultModel struct {
	ElectionID       string    `gorm:"column:election_id;primaryKey"`
	PositionID       string    `gorm:"column:position_id;primaryKey"`
	Method           string    `gorm:"column:method"`
	Condition        string    `gorm:"column:victory_condition"`
	WinnerID         string    `gorm:"column:winner_id"`
	Tied             bool      `gorm:"column:tied"`
	Vacant           bool      `gorm:"column:vacant"`
	RunoffElectionID string    `gorm:"column:runoff_election_id"`
	BallotsCounted   int       `gorm:"column:ballots_counted"`
	ProxyBallots     int       `gorm:"column:proxy_ballots"`
	Totals           []byte    `gorm:"column:totals"`
	Rounds           []byte    `gorm:"column:rounds"`
	DecidedAt        time.Time `gorm:"column:decided_at"`
}

func (positionResultModel) TableName() string {
	return "position_results"
}

func resultModelFromEntity(electionID string, result entities.PositionResult) (positionResultModel, error) {
	totals := result.Totals
	if totals == nil {
		totals = []entities.CandidateTotal{}
	}
	encodedTotals, err := json.Marshal(totals)
	if err != nil {
		return positionResultModel{}, err
	}
	rounds := result.Rounds
	if rounds == nil {
		rounds = []entities.TallyRound{}
	}
	encodedRounds, err := json.Marshal(rounds)
	if err != nil {
		return positionResultModel{}, err
	}
	return positionResultModel{
		ElectionID:       electionID,
		PositionID:       strings.TrimSpace(result.PositionID),
		Method:           string(result.Method),
		Condition:        string(result.Condition),
		WinnerID:         strings.TrimSpace(result.WinnerID),
		Tied:             result.Tied,
		Vacant:           result.Vacant,
		RunoffElectionID: strings.TrimSpace(result.RunoffElectionID),
		BallotsCounted:   result.BallotsCounted,
		ProxyBallots:     result.ProxyBallots,
		Totals:           encodedTotals,
		Rounds:           encodedRounds,
		DecidedAt:        result.DecidedAt.UTC(),
	}, nil
}

func (m positionResultModel) toEntity() (entities.PositionResult, error) {
	var totals []entities.CandidateTotal
	if len(m.Totals) > 0 {
		if err := json.Unmarshal(m.Totals, &totals); err != nil {
			return entities.PositionResult{}, err
		}
	}
	var rounds []entities.TallyRound
	if len(m.Rounds) > 0 {
		if err := json.Unmarshal(m.Rounds, &rounds); err != nil {
			return entities.PositionResult{}, err
		}
	}
	return entities.PositionResult{
		PositionID:       m.PositionID,
		Method:           entities.VotingMethod(m.Method),
		Condition:        entities.VictoryCondition(m.Condition),
		WinnerID:         m.WinnerID,
		Tied:             m.Tied,
		Vacant:           m.Vacant,
		RunoffElectionID: m.RunoffElectionID,
		BallotsCounted:   m.BallotsCounted,
		ProxyBallots:     m.ProxyBallots,
		Totals:           totals,
		Rounds:           rounds,
		DecidedAt:        m.DecidedAt.UTC(),
	}, nil
}

type ballotVoteModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	ElectionID  string     `gorm:"column:election_id"`
	PositionID  string     `gorm:"column:position_id"`
	CandidateID string     `gorm:"column:candidate_id"`
	VoterID     *string    `gorm:"column:voter_id"`
	VoterHash   *string    `gorm:"column:voter_hash"`
	VoteRank    *int       `gorm:"column:vote_rank"`
	IsProxy     bool       `gorm:"column:is_proxy"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (ballotVoteModel) TableName() string {
	return "votes"
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
	return "election_engine_outbox"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "election_engine_event_dedup"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.BallotReader = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
