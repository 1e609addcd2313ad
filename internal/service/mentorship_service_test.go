package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/notify"
	"github.com/thtun0709/beswd/internal/policy"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

func setupMentorship(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	env.addStudent("S001", "Alice")
	env.addStudent("S002", "Bob")
	env.addLecturer("L001", "Dr. Lee")
	env.addLecturer("L002", "Dr. Wang")
	return env, env.formTeam(t, 3, "S001", "S002")
}

func TestSendRequest_Success(t *testing.T) {
	env, teamID := setupMentorship(t)

	resp, err := env.svc.Mentorship.Send(context.Background(), studentP("S001"), teamID, "L001")
	if err != nil {
		t.Fatalf("发送申请应成功: %v", err)
	}
	if resp.Status != model.RequestStatusPending || resp.LecturerID != "L001" || resp.TeamID != teamID {
		t.Errorf("申请内容不符: %+v", resp)
	}
	if resp.LecturerName != "Dr. Lee" {
		t.Errorf("期望讲师名 Dr. Lee，实际 %s", resp.LecturerName)
	}
	created := env.recorder.ByEvent(notify.EventMentorRequestCreated)
	if len(created) != 1 || created[0].Target != "L001" || created[0].TargetRole != model.RoleLecturer {
		t.Errorf("讲师应收到私信: %+v", created)
	}
}

func TestSendRequest_OnlyLeader(t *testing.T) {
	env, teamID := setupMentorship(t)
	ctx := context.Background()

	_, err := env.svc.Mentorship.Send(ctx, studentP("S002"), teamID, "L001")
	assertIs(t, err, policy.ErrNotTeamLeader)
	assertKind(t, err, apperr.KindForbidden)

	_, err = env.svc.Mentorship.Send(ctx, lecturerP("L001"), teamID, "L001")
	assertKind(t, err, apperr.KindForbidden)

	_, err = env.svc.Mentorship.Send(ctx, policy.Principal{}, teamID, "L001")
	assertKind(t, err, apperr.KindUnauthorized)

	_, err = env.svc.Mentorship.Send(ctx, studentP("S001"), "missing", "L001")
	assertIs(t, err, ErrTeamNotFound)
}

func TestSendRequest_SinglePending(t *testing.T) {
	env, teamID := setupMentorship(t)
	ctx := context.Background()

	if _, err := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L001"); err != nil {
		t.Fatalf("首次申请失败: %v", err)
	}
	// 对任一讲师的待处理申请都会阻止新申请
	_, err := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L002")
	assertIs(t, err, ErrRequestPending)
	assertKind(t, err, apperr.KindConflict)
}

func TestSendRequest_UnknownLecturer(t *testing.T) {
	env, teamID := setupMentorship(t)
	_, err := env.svc.Mentorship.Send(context.Background(), studentP("S001"), teamID, "L999")
	assertIs(t, err, ErrLecturerNotFound)
}

// 并发发送只允许一条 pending
func TestSendRequest_Concurrent(t *testing.T) {
	env, teamID := setupMentorship(t)
	for _, id := range []string{"L003", "L004", "L005"} {
		env.addLecturer(id, "Lecturer "+id)
	}
	lecturers := []string{"L001", "L002", "L003", "L004", "L005"}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		conflict int
	)
	start := make(chan struct{})
	for _, l := range lecturers {
		wg.Add(1)
		go func(lecturerID string) {
			defer wg.Done()
			<-start
			_, err := env.svc.Mentorship.Send(context.Background(), studentP("S001"), teamID, lecturerID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrRequestPending):
				conflict++
			default:
				t.Errorf("意外错误: %v", err)
			}
		}(l)
	}
	close(start)
	wg.Wait()

	if success != 1 || conflict != len(lecturers)-1 {
		t.Fatalf("期望 1 成功 %d 冲突，实际 %d / %d", len(lecturers)-1, success, conflict)
	}
	var pending int
	for _, r := range env.store.requests {
		if r.TeamID == teamID && r.Status == model.RequestStatusPending {
			pending++
		}
	}
	if pending != 1 {
		t.Errorf("同一小组只应有 1 条 pending，实际 %d", pending)
	}
}

func TestRespondRequest_Accept(t *testing.T) {
	env, teamID := setupMentorship(t)
	ctx := context.Background()
	sent, err := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L001")
	if err != nil {
		t.Fatalf("发送失败: %v", err)
	}

	resp, err := env.svc.Mentorship.Respond(ctx, lecturerP("L001"), sent.ID, ActionAccept)
	if err != nil {
		t.Fatalf("接受申请失败: %v", err)
	}
	if resp.Status != model.RequestStatusAccepted {
		t.Errorf("期望 accepted，实际 %s", resp.Status)
	}
	team := env.team(t, teamID)
	if team.MentorID == nil || *team.MentorID != "L001" {
		t.Fatalf("导师应设为 L001，实际 %v", team.MentorID)
	}

	responses := env.recorder.ByEvent(notify.EventMentorResponse)
	if len(responses) != 1 || responses[0].Target != "S001" || responses[0].TargetRole != model.RoleStudent {
		t.Fatalf("组长应收到 mentor_response 私信: %+v", responses)
	}
	payload := responses[0].Payload.(map[string]any)
	if payload["status"] != model.RequestStatusAccepted || payload["lecturer_name"] != "Dr. Lee" {
		t.Errorf("通知内容不符: %+v", payload)
	}
	if msg, _ := payload["message"].(string); !strings.Contains(msg, "Dr. Lee") {
		t.Errorf("通知消息应包含讲师名: %q", msg)
	}

	// 已有导师后再申请返回 AlreadyMentored，并带出导师姓名
	_, err = env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L002")
	assertIs(t, err, ErrAlreadyMentored)
	if !strings.Contains(err.Error(), "Dr. Lee") {
		t.Errorf("错误信息应包含导师姓名: %v", err)
	}
}

func TestRespondRequest_RejectAllowsNewRequest(t *testing.T) {
	env, teamID := setupMentorship(t)
	ctx := context.Background()
	sent, _ := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L001")

	resp, err := env.svc.Mentorship.Respond(ctx, lecturerP("L001"), sent.ID, ActionReject)
	if err != nil {
		t.Fatalf("拒绝申请失败: %v", err)
	}
	if resp.Status != model.RequestStatusRejected {
		t.Errorf("期望 rejected，实际 %s", resp.Status)
	}
	if env.team(t, teamID).HasMentor() {
		t.Error("拒绝后小组不应有导师")
	}
	if _, err := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L002"); err != nil {
		t.Errorf("被拒后应可重新申请: %v", err)
	}
}

func TestRespondRequest_Errors(t *testing.T) {
	env, teamID := setupMentorship(t)
	ctx := context.Background()
	sent, _ := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L001")

	_, err := env.svc.Mentorship.Respond(ctx, lecturerP("L001"), sent.ID, "maybe")
	assertIs(t, err, ErrInvalidAction)
	assertKind(t, err, apperr.KindInvalidInput)

	// 非本人的申请与不存在的申请返回同一错误
	_, err = env.svc.Mentorship.Respond(ctx, lecturerP("L002"), sent.ID, ActionAccept)
	assertIs(t, err, ErrRequestNotFound)
	_, err = env.svc.Mentorship.Respond(ctx, lecturerP("L001"), "missing", ActionAccept)
	assertIs(t, err, ErrRequestNotFound)

	_, err = env.svc.Mentorship.Respond(ctx, studentP("S001"), sent.ID, ActionAccept)
	assertKind(t, err, apperr.KindForbidden)

	if _, err := env.svc.Mentorship.Respond(ctx, lecturerP("L001"), sent.ID, ActionReject); err != nil {
		t.Fatalf("拒绝失败: %v", err)
	}
	// 已处理的申请不能再次处理
	_, err = env.svc.Mentorship.Respond(ctx, lecturerP("L001"), sent.ID, ActionAccept)
	assertIs(t, err, ErrRequestNotFound)
}

func TestListRequests(t *testing.T) {
	env, teamID := setupMentorship(t)
	env.addStudent("S010", "Zed")
	ctx := context.Background()
	other := env.formTeam(t, 3, "S010")

	first, _ := env.svc.Mentorship.Send(ctx, studentP("S001"), teamID, "L001")
	if _, err := env.svc.Mentorship.Respond(ctx, lecturerP("L001"), first.ID, ActionReject); err != nil {
		t.Fatalf("拒绝失败: %v", err)
	}
	second, _ := env.svc.Mentorship.Send(ctx, studentP("S010"), other, "L001")

	list, err := env.svc.Mentorship.ListForLecturer(ctx, lecturerP("L001"))
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("应按创建时间倒序返回 2 条: %+v", list)
	}
	if list[1].TeamName == "" || list[1].LeaderName != "Alice" {
		t.Errorf("应附带小组名与组长名: %+v", list[1])
	}

	_, err = env.svc.Mentorship.ListForLecturer(ctx, studentP("S001"))
	assertKind(t, err, apperr.KindForbidden)

	teamList, err := env.svc.Mentorship.ListForTeam(ctx, studentP("S002"), teamID)
	if err != nil || len(teamList) != 1 {
		t.Fatalf("队员应可查看本队申请: %v %+v", err, teamList)
	}
	_, err = env.svc.Mentorship.ListForTeam(ctx, studentP("S010"), teamID)
	assertIs(t, err, ErrRequestsHidden)

	lecturers, err := env.svc.Mentorship.ListLecturers(ctx, studentP("S001"))
	if err != nil || len(lecturers) != 2 {
		t.Errorf("讲师列表不符: %v %+v", err, lecturers)
	}
}
