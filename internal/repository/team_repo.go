package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thtun0709/beswd/internal/model"
)

// TeamRepository 小组数据访问接口
type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	GetByID(ctx context.Context, id string) (*model.Team, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定小组行，串行化同队的加入/退出/投票/申请
	GetByIDForUpdate(ctx context.Context, id string) (*model.Team, error)
	Update(ctx context.Context, team *model.Team) error
	Delete(ctx context.Context, id string) error
	ClearMentor(ctx context.Context, lecturerID string) error
	List(ctx context.Context) ([]model.TeamSummary, error)
}

type teamRepo struct {
	db *gorm.DB
}

// NewTeamRepo 创建 TeamRepository 实例
func NewTeamRepo(db *gorm.DB) TeamRepository {
	return &teamRepo{db: db}
}

func (r *teamRepo) Create(ctx context.Context, team *model.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *teamRepo) GetByID(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	if err := r.db.WithContext(ctx).Where("team_id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teamRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("team_id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *teamRepo) Update(ctx context.Context, team *model.Team) error {
	return r.db.WithContext(ctx).Model(team).
		Select("name", "description", "status", "capacity", "leader_id", "mentor_id", "updated_at").
		Updates(team).Error
}

func (r *teamRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("team_id = ?", id).Delete(&model.Team{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *teamRepo) ClearMentor(ctx context.Context, lecturerID string) error {
	return r.db.WithContext(ctx).Model(&model.Team{}).
		Where("mentor_id = ?", lecturerID).
		Update("mentor_id", nil).Error
}

// List 成员数通过子查询实时统计
func (r *teamRepo) List(ctx context.Context) ([]model.TeamSummary, error) {
	var list []model.TeamSummary
	err := r.db.WithContext(ctx).
		Table("teams").
		Select("teams.*, (SELECT COUNT(*) FROM students s WHERE s.team_id = teams.team_id) AS member_count").
		Order("teams.created_at DESC").
		Scan(&list).Error
	return list, err
}
