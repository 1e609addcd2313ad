package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/thtun0709/beswd/internal/model"
	"github.com/thtun0709/beswd/internal/policy"
	"github.com/thtun0709/beswd/internal/repository"
	apperr "github.com/thtun0709/beswd/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoTeams      = apperr.New(apperr.KindNotFound, 20301, "export_no_teams", "暂无小组可导出")
	ErrExportGenerateFail = apperr.New(apperr.KindInternal, 20302, "export_failed", "生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportRoster 导出全部小组及成员名单（仅管理员）
	ExportRoster(ctx context.Context, p policy.Principal) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, now: time.Now}
}

var rosterHeaders = []string{"小组", "状态", "人数", "组长", "导师", "学号", "姓名", "邮箱", "专业", "批次", "角色"}

var statusNames = map[string]string{
	model.TeamStatusOpen:    "招募中",
	model.TeamStatusPending: "待满员",
	model.TeamStatusVoting:  "选举中",
	model.TeamStatusActive:  "已成立",
	model.TeamStatusLocked:  "已锁定",
}

// ═══════════════════════════════════════════════════════════
// ExportRoster 导出小组名单为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "小组名单"
//   - 第 1 行：标题（合并单元格）
//   - 第 2 行：表头
//   - 之后每名成员一行；同队的小组信息列纵向合并
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportRoster(ctx context.Context, p policy.Principal) (*bytes.Buffer, string, error) {
	if err := policy.RequireAdmin(p); err != nil {
		return nil, "", err
	}

	// 1. 查询小组
	teams, err := s.repo.Team.List(ctx)
	if err != nil {
		return nil, "", storageErr(s.logger, "查询小组列表失败", err)
	}
	if len(teams) == 0 {
		return nil, "", ErrExportNoTeams
	}

	// 2. 导师姓名索引
	lecturers, err := s.repo.Lecturer.List(ctx)
	if err != nil {
		return nil, "", storageErr(s.logger, "查询讲师列表失败", err)
	}
	mentorNames := make(map[string]string, len(lecturers))
	for _, l := range lecturers {
		mentorNames[l.LecturerID] = l.Name
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "小组名单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	widths := []float64{20, 10, 8, 12, 14, 12, 14, 28, 8, 8, 8}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	groupStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
	})

	// 标题行
	lastCol := colName(len(rosterHeaders) - 1)
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("小组名单（导出时间 %s）", s.now().Format("2006-01-02 15:04")))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", cell(lastCol, 1), headerStyle)

	// 表头
	for i, h := range rosterHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(lastCol, 2), headerStyle)

	// 数据行
	row := 3
	for i := range teams {
		team := &teams[i].Team
		members, err := s.repo.Student.ListByTeam(ctx, team.TeamID)
		if err != nil {
			return nil, "", storageErr(s.logger, "查询小组成员失败", err, zap.String("team_id", team.TeamID))
		}

		leaderName, mentorName := "-", "-"
		for _, m := range members {
			if team.IsLeader(m.StudentID) {
				leaderName = m.Name
			}
		}
		if team.HasMentor() {
			if name, ok := mentorNames[*team.MentorID]; ok {
				mentorName = name
			}
		}

		first := row
		span := len(members)
		if span == 0 {
			span = 1
		}
		f.SetCellValue(sheetName, cell("A", row), team.Name)
		f.SetCellValue(sheetName, cell("B", row), statusName(team.Status))
		f.SetCellValue(sheetName, cell("C", row), fmt.Sprintf("%d/%d", teams[i].MemberCount, team.Capacity))
		f.SetCellValue(sheetName, cell("D", row), leaderName)
		f.SetCellValue(sheetName, cell("E", row), mentorName)

		if len(members) == 0 {
			f.SetCellValue(sheetName, cell("F", row), "-")
		}
		for j := range members {
			m := &members[j]
			f.SetCellValue(sheetName, cell("F", row+j), m.StudentID)
			f.SetCellValue(sheetName, cell("G", row+j), m.Name)
			f.SetCellValue(sheetName, cell("H", row+j), m.Email)
			f.SetCellValue(sheetName, cell("I", row+j), m.Major)
			f.SetCellValue(sheetName, cell("J", row+j), m.Cohort)
			f.SetCellValue(sheetName, cell("K", row+j), roleName(projectedRole(m, team)))
		}

		last := first + span - 1
		if last > first {
			for _, col := range []string{"A", "B", "C", "D", "E"} {
				f.MergeCell(sheetName, cell(col, first), cell(col, last))
			}
		}
		f.SetCellStyle(sheetName, cell("A", first), cell("E", last), groupStyle)
		row = last + 1
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("小组名单_%s.xlsx", s.now().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func statusName(status string) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}

func roleName(role string) string {
	if role == model.RoleLeader {
		return "组长"
	}
	return "队员"
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
