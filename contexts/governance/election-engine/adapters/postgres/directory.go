package postgresadapter

import (
	"context"
	"strings"

	"ballotbox/contexts/governance/election-engine/ports"
)

// Membership and attendance rows are projections owned by the member and
// meeting systems; the engine reads them for quorum math and announcements.

type orgMemberModel struct {
	OrgID  string `gorm:"column:org_id;primaryKey"`
	UserID string `gorm:"column:user_id;primaryKey"`
	Status string `gorm:"column:status"`
}

func (orgMemberModel) TableName() string {
	return "org_members"
}

type meetingAttendanceModel struct {
	MeetingID string `gorm:"column:meeting_id;primaryKey"`
	UserID    string `gorm:"column:user_id;primaryKey"`
	Present   bool   `gorm:"column:present"`
}

func (meetingAttendanceModel) TableName() string {
	return "meeting_attendance"
}

func (r *Repository) ActiveMemberCount(ctx context.Context, orgID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&orgMemberModel{}).
		Where("org_id = ?", strings.TrimSpace(orgID)).
		Where("status = ?", "active").
		Count(&count).Error; err != nil {
		return 0, r.logError("election_repo_member_count_failed", err, "org_id", strings.TrimSpace(orgID))
	}
	return int(count), nil
}

func (r *Repository) ListActiveMembers(ctx context.Context, orgID string) ([]string, error) {
	var rows []orgMemberModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", strings.TrimSpace(orgID)).
		Where("status = ?", "active").
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_list_members_failed", err, "org_id", strings.TrimSpace(orgID))
	}
	members := make([]string, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.UserID)
	}
	return members, nil
}

func (r *Repository) GetAttendees(ctx context.Context, meetingID string) ([]ports.Attendee, error) {
	var rows []meetingAttendanceModel
	if err := r.db.WithContext(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("election_repo_get_attendees_failed", err, "meeting_id", strings.TrimSpace(meetingID))
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
