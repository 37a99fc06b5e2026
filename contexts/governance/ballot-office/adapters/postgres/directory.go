package postgresadapter

import (
	"context"
	"errors"
	"strings"

	"ballotbox/contexts/governance/ballot-office/ports"

	"gorm.io/gorm"
)

// Membership and attendance rows are projections owned by the member and
// meeting systems; the ballot office only reads them.

type orgMemberModel struct {
	OrgID  string `gorm:"column:org_id;primaryKey"`
	UserID string `gorm:"column:user_id;primaryKey"`
	Status string `gorm:"column:status"`
}

func (orgMemberModel) TableName() string {
	return "org_members"
}

type memberRoleModel struct {
	UserID string `gorm:"column:user_id;primaryKey"`
	Role   string `gorm:"column:role;primaryKey"`
}

func (memberRoleModel) TableName() string {
	return "member_roles"
}

type meetingAttendanceModel struct {
	MeetingID string `gorm:"column:meeting_id;primaryKey"`
	UserID    string `gorm:"column:user_id;primaryKey"`
	Present   bool   `gorm:"column:present"`
}

func (meetingAttendanceModel) TableName() string {
	return "meeting_attendance"
}

func (r *Repository) ResolveRoles(ctx context.Context, userID string) ([]string, error) {
	var rows []memberRoleModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("role ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_resolve_roles_failed", err, "user_id", strings.TrimSpace(userID))
	}
	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

func (r *Repository) ResolveStatus(ctx context.Context, userID string) (string, error) {
	var row orgMemberModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", r.logError("ballot_repo_resolve_status_failed", err, "user_id", strings.TrimSpace(userID))
	}
	return row.Status, nil
}

func (r *Repository) ListActiveMembers(ctx context.Context, orgID string) ([]string, error) {
	var rows []orgMemberModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", strings.TrimSpace(orgID)).
		Where("status = ?", "active").
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_list_members_failed", err, "org_id", strings.TrimSpace(orgID))
	}
	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.UserID)
	}
	return members, nil
}

func (r *Repository) IsMember(ctx context.Context, orgID string, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&orgMemberModel{}).
		Where("org_id = ?", strings.TrimSpace(orgID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Count(&count).Error; err != nil {
		return false, r.logError("ballot_repo_is_member_failed", err,
			"org_id", strings.TrimSpace(orgID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return count > 0, nil
}

func (r *Repository) GetAttendees(ctx context.Context, meetingID string) ([]ports.Attendee, error) {
	var rows []meetingAttendanceModel
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ballot_repo_get_attendees_failed", err, "meeting_id", strings.TrimSpace(meetingID))
	}
	attendees := make([]ports.Attendee, 0, len(rows))
	for _, row := range rows {
		attendees = append(attendees, ports.Attendee{
			UserID:  row.UserID,
			Present: row.Present,
		})
	}
	return attendees, nil
}

var _ ports.MemberDirectory = (*Repository)(nil)
var _ ports.MeetingDirectory = (*Repository)(nil)
