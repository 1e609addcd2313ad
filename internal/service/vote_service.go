package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/thtun0709/beswd/internal/dto"
	"github.com/thtun0709/beswd/internal/metrics"
	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

var (
	ErrSelfVote         = apperr.New(apperr.KindConflict, 20101, "self_vote", "不能投票给自己")
	ErrInvalidCandidate = apperr.New(apperr.KindConflict, 20102, "invalid_candidate", "候选人不是该小组成员")
	ErrResultsForbidden = apperr.New(apperr.KindForbidden, 20103, "vote_results_forbidden", "只能查看自己小组的投票")
)

// 投票结果
const (
	VoteStatusVoted        = "voted"
	VoteStatusLeaderChosen = "leader_chosen"
)

// VoteService 组长选举业务接口
type VoteService interface {
	// Vote 写入/覆盖选票并在同一事务内计票；候选人票数严格过半即成为组长
	Vote(ctx context.Context, p policy.Principal, teamID, candidateID string) (*dto.VoteResponse, error)
	Results(ctx context.Context, p policy.Principal, teamID string) ([]dto.VoteResultItem, error)
}

type voteService struct {
	repo       *repository.Repository
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewVoteService 创建 VoteService 实例
func NewVoteService(repo *repository.Repository, dispatcher notify.Dispatcher, logger *zap.Logger) VoteService {
	return &voteService{repo: repo, dispatcher: dispatcher, logger: logger}
}

func (s *voteService) Vote(ctx context.Context, p policy.Principal, teamID, candidateID string) (resp *dto.VoteResponse, err error) {
	defer func(start time.Time) {
		metrics.ObserveTeamOp("vote", start, err)
		if err == nil {
			metrics.ObserveVote(resp.Status)
		}
	}(time.Now())

	if err := policy.RequireStudent(p); err != nil {
		return nil, err
	}
	// 自投优先于一切状态检查
	if p.ID == candidateID {
		return nil, ErrSelfVote
	}

	var batch notify.Batch
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		// 锁住小组行，串行化同队的并发投票
		team, err := tx.Team.GetByIDForUpdate(ctx, teamID)
		if err != nil {
			if isNotFound(err) {
				return ErrTeamNotFound
			}
			return err
		}
		if team.Status == model.TeamStatusLocked {
			return ErrTeamLocked
		}

		members, err := tx.Student.ListByTeam(ctx, teamID)
		if err != nil {
			return err
		}
		var candidate, voter *model.Student
		for i := range members {
			switch members[i].StudentID {
			case candidateID:
				candidate = &members[i]
			case p.ID:
				voter = &members[i]
			}
		}
		if candidate == nil {
			return ErrInvalidCandidate
		}
		if voter == nil {
			return ErrNotMember
		}

		if err := tx.Vote.Upsert(ctx, &model.TeamVote{
			TeamID:      teamID,
			VoterID:     p.ID,
			CandidateID: candidateID,
		}); err != nil {
			return err
		}

		tally, err := tx.Vote.CountForCandidate(ctx, teamID, candidateID)
		if err != nil {
			return err
		}
		total := int64(len(members))

		resp = &dto.VoteResponse{
			Status:       VoteStatusVoted,
			Votes:        tally,
			TotalMembers: total,
			CandidateID:  candidateID,
		}
		if tally*2 <= total {
			return nil
		}

		resp.Status = VoteStatusLeaderChosen
		resp.LeaderID = candidate.StudentID
		resp.LeaderName = candidate.Name

		changed := !team.IsLeader(candidateID) || team.Status != model.TeamStatusActive
		if !changed {
			return nil
		}
		team.LeaderID = &candidate.StudentID
		team.Status = model.TeamStatusActive
		if err := tx.Team.Update(ctx, team); err != nil {
			return err
		}

		payload := map[string]any{
			"team_id":     teamID,
			"leader_id":   candidate.StudentID,
			"leader_name": candidate.Name,
			"votes":       tally,
			"total":       total,
		}
		batch.Broadcast(notify.EventLeaderChosen, payload)
		batch.Principal(studentRecipient(candidate.StudentID), notify.EventLeaderChosen, payload)
		return nil
	})
	if err != nil {
		return nil, txErr(s.logger, "投票失败", err, zap.String("team_id", teamID), zap.String("voter_id", p.ID))
	}

	if batch.Len() > 0 {
		s.logger.Info("组长已选出",
			zap.String("team_id", teamID),
			zap.String("leader_id", resp.LeaderID),
			zap.Int64("votes", resp.Votes),
			zap.Int64("total", resp.TotalMembers),
		)
	}
	notify.Flush(detach(ctx), s.dispatcher, &batch, s.logger)
	return resp, nil
}

func (s *voteService) Results(ctx context.Context, p policy.Principal, teamID string) ([]dto.VoteResultItem, error) {
	if err := policy.RequireAuthenticated(p); err != nil {
		return nil, err
	}

	if _, err := s.repo.Team.GetByID(ctx, teamID); err != nil {
		if isNotFound(err) {
			return nil, ErrTeamNotFound
		}
		return nil, storageErr(s.logger, "查询小组失败", err, zap.String("team_id", teamID))
	}

	if !p.IsAdmin() {
		if !p.IsStudent() {
			return nil, ErrResultsForbidden
		}
		student, err := s.repo.Student.GetByID(ctx, p.ID)
		if err != nil {
			if isNotFound(err) {
				return nil, ErrResultsForbidden
			}
			return nil, storageErr(s.logger, "查询学生失败", err, zap.String("student_id", p.ID))
		}
		if !student.InTeam(teamID) {
			return nil, ErrResultsForbidden
		}
	}

	rows, err := s.repo.Vote.ListResults(ctx, teamID)
	if err != nil {
		return nil, storageErr(s.logger, "查询投票明细失败", err, zap.String("team_id", teamID))
	}
	items := make([]dto.VoteResultItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.VoteResultItem{
			VoterID:       r.VoterID,
			VoterName:     r.VoterName,
			CandidateID:   r.CandidateID,
			CandidateName: r.CandidateName,
		})
	}
	return items, nil
}
