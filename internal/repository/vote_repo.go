package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thtun0709/beswd/internal/model"
)

// VoteRepository 组长投票数据访问接口
type VoteRepository interface {
	// Upsert 按 (team_id, voter_id) 覆盖写入，重投只改候选人
	Upsert(ctx context.Context, vote *model.TeamVote) error
	CountForCandidate(ctx context.Context, teamID, candidateID string) (int64, error)
	// DeleteInvolving 删除该生投出的以及投给该生的选票
	DeleteInvolving(ctx context.Context, teamID, studentID string) error
	DeleteByTeam(ctx context.Context, teamID string) error
	ListResults(ctx context.Context, teamID string) ([]model.VoteResult, error)
}

type voteRepo struct {
	db *gorm.DB
}

// NewVoteRepo 创建 VoteRepository 实例
func NewVoteRepo(db *gorm.DB) VoteRepository {
	return &voteRepo{db: db}
}

func (r *voteRepo) Upsert(ctx context.Context, vote *model.TeamVote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "voter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"candidate_id", "updated_at"}),
		}).
		Create(vote).Error
}

func (r *voteRepo) CountForCandidate(ctx context.Context, teamID, candidateID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TeamVote{}).
		Where("team_id = ? AND candidate_id = ?", teamID, candidateID).
		Count(&n).Error
	return n, err
}

func (r *voteRepo) DeleteInvolving(ctx context.Context, teamID, studentID string) error {
	return r.db.WithContext(ctx).
		Where("team_id = ? AND (voter_id = ? OR candidate_id = ?)", teamID, studentID, studentID).
		Delete(&model.TeamVote{}).Error
}

func (r *voteRepo) DeleteByTeam(ctx context.Context, teamID string) error {
	return r.db.WithContext(ctx).Where("team_id = ?", teamID).Delete(&model.TeamVote{}).Error
}

func (r *voteRepo) ListResults(ctx context.Context, teamID string) ([]model.VoteResult, error) {
	var results []model.VoteResult
	err := r.db.WithContext(ctx).
		Table("team_votes v").
		Select("v.voter_id, voter.name AS voter_name, v.candidate_id, cand.name AS candidate_name").
		Joins("JOIN students voter ON voter.student_id = v.voter_id").
		Joins("JOIN students cand ON cand.student_id = v.candidate_id").
		Where("v.team_id = ?", teamID).
		Order("v.voter_id ASC").
		Scan(&results).Error
	return results, err
}
