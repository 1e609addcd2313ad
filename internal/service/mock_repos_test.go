package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/repository"
)

// ── 内存存储 ──
// 所有 mock repo 共享一份数据；读写返回副本，行为与数据库一致

type voteKey struct{ team, voter string }

type memStore struct {
	mu        sync.Mutex
	students  map[string]model.Student
	lecturers map[string]model.Lecturer
	teams     map[string]model.Team
	votes     map[voteKey]model.TeamVote
	requests  map[string]model.MentorshipRequest
	posts     map[string]model.Post
	comments  map[string]model.Comment

	clock   time.Time
	lockErr error // 非 nil 时 GetByIDForUpdate 返回该错误，模拟锁等待超时
}

func newMemStore() *memStore {
	return &memStore{
		students:  make(map[string]model.Student),
		lecturers: make(map[string]model.Lecturer),
		teams:     make(map[string]model.Team),
		votes:     make(map[voteKey]model.TeamVote),
		requests:  make(map[string]model.MentorshipRequest),
		posts:     make(map[string]model.Post),
		comments:  make(map[string]model.Comment),
		clock:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick 单调递增的时间戳，保证按时间排序稳定
func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) toRepository() *repository.Repository {
	return &repository.Repository{
		Student:    &mockStudentRepo{s},
		Lecturer:   &mockLecturerRepo{s},
		Team:       &mockTeamRepo{s},
		Vote:       &mockVoteRepo{s},
		Mentorship: &mockMentorshipRepo{s},
		Post:       &mockPostRepo{s},
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ s *memStore }

func (m *mockStudentRepo) Create(_ context.Context, st *model.Student) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.students[st.StudentID]; ok {
		return uniqueViolation("students_pkey")
	}
	for _, other := range m.s.students {
		if strings.EqualFold(other.Email, st.Email) {
			return uniqueViolation("uk_students_email")
		}
	}
	if st.Role == "" {
		st.Role = model.RoleStudent
	}
	st.CreatedAt = m.s.tick()
	st.UpdatedAt = st.CreatedAt
	m.s.students[st.StudentID] = *st
	return nil
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if st, ok := m.s.students[id]; ok {
		return &st, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Student, error) {
	return m.GetByID(ctx, id)
}

func (m *mockStudentRepo) GetByEmail(_ context.Context, email string) (*model.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, st := range m.s.students {
		if strings.EqualFold(st.Email, email) {
			return &st, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) Update(_ context.Context, st *model.Student) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st.UpdatedAt = m.s.tick()
	m.s.students[st.StudentID] = *st
	return nil
}

func (m *mockStudentRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	st.PasswordHash = hash
	m.s.students[id] = st
	return nil
}

func (m *mockStudentRepo) SetTeam(_ context.Context, id string, teamID *string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	st, ok := m.s.students[id]
	if !ok {
		return nil
	}
	if teamID != nil {
		v := *teamID
		teamID = &v
	}
	st.TeamID = teamID
	m.s.students[id] = st
	return nil
}

func (m *mockStudentRepo) ClearTeam(_ context.Context, teamID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, st := range m.s.students {
		if st.InTeam(teamID) {
			st.TeamID = nil
			m.s.students[id] = st
		}
	}
	return nil
}

func (m *mockStudentRepo) ListByTeam(_ context.Context, teamID string) ([]model.Student, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Student
	for _, st := range m.s.students {
		if st.InTeam(teamID) {
			result = append(result, st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockStudentRepo) CountByTeam(ctx context.Context, teamID string) (int64, error) {
	members, _ := m.ListByTeam(ctx, teamID)
	return int64(len(members)), nil
}

func (m *mockStudentRepo) List(_ context.Context, offset, limit int) ([]model.Student, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := make([]model.Student, 0, len(m.s.students))
	for _, st := range m.s.students {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StudentID < all[j].StudentID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ── Mock LecturerRepository ──

type mockLecturerRepo struct{ s *memStore }

func (m *mockLecturerRepo) Create(_ context.Context, l *model.Lecturer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.lecturers[l.LecturerID]; ok {
		return uniqueViolation("lecturers_pkey")
	}
	l.CreatedAt = m.s.tick()
	m.s.lecturers[l.LecturerID] = *l
	return nil
}

func (m *mockLecturerRepo) GetByID(_ context.Context, id string) (*model.Lecturer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if l, ok := m.s.lecturers[id]; ok {
		return &l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLecturerRepo) GetByEmail(_ context.Context, email string) (*model.Lecturer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, l := range m.s.lecturers {
		if strings.EqualFold(l.Email, email) {
			return &l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLecturerRepo) Update(_ context.Context, l *model.Lecturer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.lecturers[l.LecturerID] = *l
	return nil
}

func (m *mockLecturerRepo) UpdatePassword(_ context.Context, id, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.lecturers[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.PasswordHash = hash
	m.s.lecturers[id] = l
	return nil
}

func (m *mockLecturerRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.lecturers[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.lecturers, id)
	return nil
}

func (m *mockLecturerRepo) List(_ context.Context) ([]model.Lecturer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := make([]model.Lecturer, 0, len(m.s.lecturers))
	for _, l := range m.s.lecturers {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock TeamRepository ──

type mockTeamRepo struct{ s *memStore }

func (m *mockTeamRepo) Create(_ context.Context, t *model.Team) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t.CreatedAt = m.s.tick()
	t.UpdatedAt = t.CreatedAt
	m.s.teams[t.TeamID] = copyTeam(*t)
	return nil
}

func (m *mockTeamRepo) GetByID(_ context.Context, id string) (*model.Team, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.teams[id]; ok {
		t = copyTeam(t)
		return &t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTeamRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Team, error) {
	m.s.mu.Lock()
	lockErr := m.s.lockErr
	m.s.mu.Unlock()
	if lockErr != nil {
		return nil, lockErr
	}
	return m.GetByID(ctx, id)
}

func (m *mockTeamRepo) Update(_ context.Context, t *model.Team) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t.UpdatedAt = m.s.tick()
	m.s.teams[t.TeamID] = copyTeam(*t)
	return nil
}

func (m *mockTeamRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.teams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.s.teams, id)
	return nil
}

func (m *mockTeamRepo) ClearMentor(_ context.Context, lecturerID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, t := range m.s.teams {
		if t.MentorID != nil && *t.MentorID == lecturerID {
			t.MentorID = nil
			m.s.teams[id] = t
		}
	}
	return nil
}

func (m *mockTeamRepo) List(_ context.Context) ([]model.TeamSummary, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	result := make([]model.TeamSummary, 0, len(m.s.teams))
	for _, t := range m.s.teams {
		var count int64
		for _, st := range m.s.students {
			if st.InTeam(t.TeamID) {
				count++
			}
		}
		result = append(result, model.TeamSummary{Team: copyTeam(t), MemberCount: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// copyTeam 指针字段深拷贝，避免调用方修改存储内容
func copyTeam(t model.Team) model.Team {
	if t.LeaderID != nil {
		v := *t.LeaderID
		t.LeaderID = &v
	}
	if t.MentorID != nil {
		v := *t.MentorID
		t.MentorID = &v
	}
	return t
}

// ── Mock VoteRepository ──

type mockVoteRepo struct{ s *memStore }

func (m *mockVoteRepo) Upsert(_ context.Context, v *model.TeamVote) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	key := voteKey{v.TeamID, v.VoterID}
	now := m.s.tick()
	if existing, ok := m.s.votes[key]; ok {
		v.CreatedAt = existing.CreatedAt
	} else {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	m.s.votes[key] = *v
	return nil
}

func (m *mockVoteRepo) CountForCandidate(_ context.Context, teamID, candidateID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for k, v := range m.s.votes {
		if k.team == teamID && v.CandidateID == candidateID {
			n++
		}
	}
	return n, nil
}

func (m *mockVoteRepo) DeleteInvolving(_ context.Context, teamID, studentID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for k, v := range m.s.votes {
		if k.team == teamID && (v.VoterID == studentID || v.CandidateID == studentID) {
			delete(m.s.votes, k)
		}
	}
	return nil
}

func (m *mockVoteRepo) DeleteByTeam(_ context.Context, teamID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for k := range m.s.votes {
		if k.team == teamID {
			delete(m.s.votes, k)
		}
	}
	return nil
}

func (m *mockVoteRepo) ListResults(_ context.Context, teamID string) ([]model.VoteResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.VoteResult
	for k, v := range m.s.votes {
		if k.team != teamID {
			continue
		}
		result = append(result, model.VoteResult{
			VoterID:       v.VoterID,
			VoterName:     m.s.students[v.VoterID].Name,
			CandidateID:   v.CandidateID,
			CandidateName: m.s.students[v.CandidateID].Name,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VoterID < result[j].VoterID })
	return result, nil
}

// ── Mock MentorshipRepository ──

type mockMentorshipRepo struct{ s *memStore }

func (m *mockMentorshipRepo) Create(_ context.Context, r *model.MentorshipRequest) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	// 对应部分唯一索引 uk_mentorship_requests_pending
	if r.Status == model.RequestStatusPending {
		for _, other := range m.s.requests {
			if other.TeamID == r.TeamID && other.Status == model.RequestStatusPending {
				return uniqueViolation("uk_mentorship_requests_pending")
			}
		}
	}
	r.CreatedAt = m.s.tick()
	r.UpdatedAt = r.CreatedAt
	m.s.requests[r.RequestID] = *r
	return nil
}

func (m *mockMentorshipRepo) GetByID(_ context.Context, id string) (*model.MentorshipRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r, ok := m.s.requests[id]; ok {
		return &r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMentorshipRepo) GetPendingForUpdate(_ context.Context, id, lecturerID string) (*model.MentorshipRequest, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.requests[id]
	if !ok || r.LecturerID != lecturerID || r.Status != model.RequestStatusPending {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (m *mockMentorshipRepo) HasPending(_ context.Context, teamID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.requests {
		if r.TeamID == teamID && r.Status == model.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMentorshipRepo) UpdateStatus(_ context.Context, id, status string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = status
	r.UpdatedAt = m.s.tick()
	m.s.requests[id] = r
	return nil
}

func (m *mockMentorshipRepo) list(match func(model.MentorshipRequest) bool) []model.MentorshipRequestView {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.MentorshipRequestView
	for _, r := range m.s.requests {
		if !match(r) {
			continue
		}
		view := model.MentorshipRequestView{
			MentorshipRequest: r,
			TeamName:          m.s.teams[r.TeamID].Name,
			LecturerName:      m.s.lecturers[r.LecturerID].Name,
		}
		if leader := m.s.teams[r.TeamID].LeaderID; leader != nil {
			id, name := *leader, m.s.students[*leader].Name
			view.LeaderID, view.LeaderName = &id, &name
		}
		result = append(result, view)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result
}

func (m *mockMentorshipRepo) ListByLecturer(_ context.Context, lecturerID string) ([]model.MentorshipRequestView, error) {
	return m.list(func(r model.MentorshipRequest) bool { return r.LecturerID == lecturerID }), nil
}

func (m *mockMentorshipRepo) ListByTeam(_ context.Context, teamID string) ([]model.MentorshipRequestView, error) {
	return m.list(func(r model.MentorshipRequest) bool { return r.TeamID == teamID }), nil
}

func (m *mockMentorshipRepo) DeleteByTeam(_ context.Context, teamID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, r := range m.s.requests {
		if r.TeamID == teamID {
			delete(m.s.requests, id)
		}
	}
	return nil
}

func (m *mockMentorshipRepo) DeleteByLecturer(_ context.Context, lecturerID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, r := range m.s.requests {
		if r.LecturerID == lecturerID {
			delete(m.s.requests, id)
		}
	}
	return nil
}

// ── Mock PostRepository ──

type mockPostRepo struct{ s *memStore }

func (m *mockPostRepo) Create(_ context.Context, p *model.Post) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p.CreatedAt = m.s.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	stored.Comments = nil
	m.s.posts[p.PostID] = stored
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id string) (*model.Post, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.posts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	p.Comments = m.commentsOf(id)
	return &p, nil
}

func (m *mockPostRepo) Update(_ context.Context, p *model.Post) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p.UpdatedAt = m.s.tick()
	stored := *p
	stored.Comments = nil
	m.s.posts[p.PostID] = stored
	return nil
}

func (m *mockPostRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.posts, id)
	for cid, c := range m.s.comments {
		if c.PostID == id {
			delete(m.s.comments, cid)
		}
	}
	return nil
}

func (m *mockPostRepo) List(_ context.Context, offset, limit int) ([]model.Post, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := make([]model.Post, 0, len(m.s.posts))
	for _, p := range m.s.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (m *mockPostRepo) CreateComment(_ context.Context, c *model.Comment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.CreatedAt = m.s.tick()
	m.s.comments[c.CommentID] = *c
	return nil
}

func (m *mockPostRepo) GetComment(_ context.Context, id string) (*model.Comment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.comments[id]; ok {
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPostRepo) DeleteComment(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.comments, id)
	return nil
}

func (m *mockPostRepo) ListComments(_ context.Context, postID string) ([]model.Comment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.commentsOf(postID), nil
}

// commentsOf 调用方需持有锁
func (m *mockPostRepo) commentsOf(postID string) []model.Comment {
	var result []model.Comment
	for _, c := range m.s.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
