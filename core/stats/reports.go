package stats

import (
	"github.com/volatiletech/null/v8"

	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/user"
)

// Collections is a loaded copy of every domain collection.
type Collections struct {
	Faculty     []user.User        `json:"faculty"`
	Students    []user.User        `json:"students"`
	Sections    []lab.Section      `json:"sections"`
	Experiments []lab.Experiment   `json:"experiments"`
	Questions   []lab.VivaQuestion `json:"viva_questions"`
	Statuses    []lab.Status       `json:"statuses"`
}

type (
	DashboardStats struct {
		SectionID            string  `json:"section_id,omitempty"`
		TotalStudents        int     `json:"total_students"`
		TotalExperiments     int     `json:"total_experiments"`
		CompletedExperiments int     `json:"completed_experiments"`
		PendingExperiments   int     `json:"pending_experiments"`
		CompletedVivas       int     `json:"completed_vivas"`
		PendingVivas         int     `json:"pending_vivas"`
		CompletionRate       float64 `json:"completion_rate"`
		AverageScorePercent  float64 `json:"average_score_percent"`
	}

	SectionSummary struct {
		Section              lab.Section `json:"section"`
		StudentCount         int         `json:"student_count"`
		CompletedExperiments int         `json:"completed_experiments"`
		CompletedVivas       int         `json:"completed_vivas"`
		CompletionRate       float64     `json:"completion_rate"`
	}

	ReportRow struct {
		Experiment lab.Experiment `json:"experiment"`
		Status     lab.Status     `json:"status"`
		Score      null.Int       `json:"score"`
		MaxScore   int            `json:"max_score"`
		Band       string         `json:"band,omitempty"`
	}

	StudentReport struct {
		Student      user.User   `json:"student"`
		Progress     Progress    `json:"progress"`
		TotalScore   int         `json:"total_score"`
		AverageScore null.Int    `json:"average_score"`
		Rows         []ReportRow `json:"rows"`
	}
)

// Dashboard computes the faculty dashboard. An empty sectionID covers all students.
func Dashboard(c Collections, sectionID string) DashboardStats {
	students := c.Students
	if sectionID != "" {
		students = StudentsBySection(c.Students, sectionID)
	}
	memberStatuses := statusesOf(c.Statuses, students)

	ds := DashboardStats{
		SectionID:            sectionID,
		TotalStudents:        len(students),
		TotalExperiments:     len(c.Experiments),
		CompletedExperiments: ExperimentsCompletedCount(c.Statuses, c.Students, sectionID),
		CompletedVivas:       VivaCompletedCount(c.Statuses, c.Students, sectionID),
		AverageScorePercent:  AverageScorePercent(memberStatuses, QuestionCountByExperiment(c.Questions)),
	}
	expected := ds.TotalStudents * ds.TotalExperiments
	ds.PendingExperiments = nonNegative(expected - ds.CompletedExperiments)
	ds.PendingVivas = nonNegative(expected - ds.CompletedVivas)
	ds.CompletionRate = CompletionRate(students, c.Experiments, ds.CompletedExperiments)
	return ds
}

// SectionSummaries summarizes every section owned by the faculty member.
func SectionSummaries(c Collections, facultyID string) []SectionSummary {
	secs := SectionsForFaculty(c.Sections, facultyID)
	res := make([]SectionSummary, 0, len(secs))
	for _, sec := range secs {
		students := StudentsBySection(c.Students, sec.ID)
		completed := ExperimentsCompletedCount(c.Statuses, c.Students, sec.ID)
		res = append(res, SectionSummary{
			Section:              sec,
			StudentCount:         len(students),
			CompletedExperiments: completed,
			CompletedVivas:       VivaCompletedCount(c.Statuses, c.Students, sec.ID),
			CompletionRate:       CompletionRate(students, c.Experiments, completed),
		})
	}
	return res
}

// Report builds the per-experiment progress of a student, one row per experiment.
func Report(c Collections, student user.User) StudentReport {
	byExp := make(map[string]lab.Status)
	for _, st := range c.Statuses {
		if st.StudentID == student.ID {
			byExp[st.ExperimentID] = st
		}
	}
	counts := QuestionCountByExperiment(c.Questions)

	rep := StudentReport{
		Student:    student,
		Progress:   StudentProgress(student.ID, c.Statuses),
		TotalScore: TotalVivaScore(student.ID, c.Statuses),
		Rows:       make([]ReportRow, 0, len(c.Experiments)),
	}
	if avg, ok := AverageScore(student.ID, c.Statuses); ok {
		rep.AverageScore = null.IntFrom(avg)
	}
	for _, exp := range c.Experiments {
		st, ok := byExp[exp.ID]
		if !ok {
			st = lab.Status{StudentID: student.ID, ExperimentID: exp.ID}
		}
		row := ReportRow{Experiment: exp, Status: st, Score: st.VivaScore, MaxScore: MaxVivaScore(counts[exp.ID])}
		if st.VivaCompleted {
			row.Band = ScoreBand(st.VivaScore.Int, row.MaxScore)
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

func statusesOf(statuses []lab.Status, students []user.User) []lab.Status {
	ids := make(map[string]bool, len(students))
	for _, s := range students {
		ids[s.ID] = true
	}
	res := make([]lab.Status, 0)
	for _, st := range statuses {
		if ids[st.StudentID] {
			res = append(res, st)
		}
	}
	return res
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
