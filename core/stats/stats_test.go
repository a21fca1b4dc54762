package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/user"
)

func student(id, section string) user.User {
	return user.User{ID: id, Name: id, Role: user.RoleStudent, Student: &user.StudentInfo{RollNumber: id, SectionID: section}}
}

func question(id, expID string, correct int) lab.VivaQuestion {
	return lab.VivaQuestion{ID: id, ExperimentID: expID, Question: id + "?", Options: []string{"a", "b", "c", "d"}, CorrectOptionIndex: correct}
}

func fixtures() Collections {
	return Collections{
		Students:    []user.User{student("s1", "A"), student("s2", "A"), student("s3", "B")},
		Sections:    []lab.Section{{ID: "A", Name: "A", FacultyID: "f1"}, {ID: "B", Name: "B", FacultyID: "f2"}},
		Experiments: []lab.Experiment{{ID: "e1"}, {ID: "e2"}},
		Questions:   []lab.VivaQuestion{question("q1", "e1", 0), question("q2", "e1", 1), question("q3", "e2", 2)},
		Statuses: []lab.Status{
			{ID: "st1", StudentID: "s1", ExperimentID: "e1", ExperimentCompleted: true, VivaCompleted: true, VivaScore: null.IntFrom(20)},
			{ID: "st2", StudentID: "s1", ExperimentID: "e2", ExperimentCompleted: true},
			{ID: "st3", StudentID: "s2", ExperimentID: "e1", VivaCompleted: true, VivaScore: null.IntFrom(10)},
			{ID: "st4", StudentID: "s3", ExperimentID: "e2", ExperimentCompleted: true, VivaCompleted: true, VivaScore: null.IntFrom(0)},
		},
	}
}

func TestCompletedCounts(t *testing.T) {
	c := fixtures()

	tests := []struct {
		name      string
		sectionID string
		wantExp   int
		wantViva  int
	}{
		{name: "all sections", wantExp: 3, wantViva: 3},
		{name: "section A", sectionID: "A", wantExp: 2, wantViva: 2},
		{name: "section B", sectionID: "B", wantExp: 1, wantViva: 1},
		{name: "unknown section", sectionID: "Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantExp, ExperimentsCompletedCount(c.Statuses, c.Students, tt.sectionID))
			assert.Equal(t, tt.wantViva, VivaCompletedCount(c.Statuses, c.Students, tt.sectionID))
		})
	}
}

func TestStudentProgress(t *testing.T) {
	c := fixtures()
	assert.Equal(t, Progress{CompletedExperiments: 2, CompletedVivas: 1}, StudentProgress("s1", c.Statuses))
	assert.Equal(t, Progress{CompletedVivas: 1}, StudentProgress("s2", c.Statuses))
	assert.Equal(t, Progress{}, StudentProgress("nobody", c.Statuses))
}

func TestCompletionRate(t *testing.T) {
	students := []user.User{student("s1", "A"), student("s2", "A"), student("s3", "A")}
	exps := []lab.Experiment{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}

	tests := []struct {
		name      string
		students  []user.User
		exps      []lab.Experiment
		completed int
		want      float64
	}{
		{name: "no students", exps: exps, want: 0},
		{name: "no experiments", students: students, want: 0},
		{name: "nothing at all", want: 0},
		{name: "none completed", students: students, exps: exps, want: 0},
		{name: "rounded to one decimal", students: students, exps: exps, completed: 1, want: 11.1},
		{name: "two thirds", students: students, exps: exps, completed: 6, want: 66.7},
		{name: "all completed", students: students, exps: exps, completed: 9, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletionRate(tt.students, tt.exps, tt.completed))
		})
	}
}

func TestGradeViva(t *testing.T) {
	questions := []lab.VivaQuestion{question("q1", "e1", 0), question("q2", "e1", 1), question("q3", "e1", 2), question("q4", "e1", 3)}

	tests := []struct {
		name       string
		questions  []lab.VivaQuestion
		selections map[string]int
		wantScore  int
		wantErr    func(t *testing.T, err error)
	}{
		{
			name:       "three of four correct",
			questions:  questions,
			selections: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 0},
			wantScore:  30,
		},
		{
			name:       "all correct",
			questions:  questions,
			selections: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 3},
			wantScore:  40,
		},
		{
			name:       "none correct",
			questions:  questions,
			selections: map[string]int{"q1": 3, "q2": 3, "q3": 3, "q4": 0},
			wantScore:  0,
		},
		{
			name:       "incomplete",
			questions:  questions,
			selections: map[string]int{"q1": 0, "q2": 1, "q3": 2},
			wantErr: func(t *testing.T, err error) {
				var ise *core.IncompleteSubmissionError
				require.ErrorAs(t, err, &ise)
				assert.Equal(t, 3, ise.Answered)
				assert.Equal(t, 4, ise.Total)
			},
		},
		{
			name: "no questions",
			wantErr: func(t *testing.T, err error) {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:       "unknown question",
			questions:  questions,
			selections: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q9": 3},
			wantErr: func(t *testing.T, err error) {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:       "option out of range",
			questions:  questions,
			selections: map[string]int{"q1": 0, "q2": 1, "q3": 2, "q4": 4},
			wantErr: func(t *testing.T, err error) {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers, score, err := GradeViva(tt.questions, tt.selections)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
			require.Len(t, answers, len(tt.questions))

			correct := 0
			for i, a := range answers {
				assert.Equal(t, tt.questions[i].ID, a.QuestionID)
				assert.Equal(t, tt.selections[a.QuestionID], a.SelectedOptionIndex)
				if a.IsCorrect {
					correct++
				}
			}
			assert.Equal(t, tt.wantScore, correct*lab.PointsPerQuestion)
		})
	}
}

func TestGradeViva_deterministic(t *testing.T) {
	questions := []lab.VivaQuestion{question("q1", "e1", 0), question("q2", "e1", 1)}
	sel := map[string]int{"q1": 0, "q2": 0}

	a1, s1, err := GradeViva(questions, sel)
	require.NoError(t, err)
	a2, s2, err := GradeViva(questions, sel)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Equal(t, a1, a2)
}

func TestAverageScorePercent(t *testing.T) {
	c := fixtures()
	counts := QuestionCountByExperiment(c.Questions)
	assert.Equal(t, map[string]int{"e1": 2, "e2": 1}, counts)

	// completed: s1/e1 20 of 20, s2/e1 10 of 20, s3/e2 0 of 10
	assert.Equal(t, 60.0, AverageScorePercent(c.Statuses, counts))
	assert.Equal(t, 0.0, AverageScorePercent(nil, counts))
	assert.Equal(t, 0.0, AverageScorePercent([]lab.Status{{ExperimentID: "e1"}}, counts))
}

func TestStudentScores(t *testing.T) {
	c := fixtures()

	assert.Equal(t, 20, TotalVivaScore("s1", c.Statuses))
	assert.Equal(t, 0, TotalVivaScore("nobody", c.Statuses))

	avg, ok := AverageScore("s1", c.Statuses)
	assert.True(t, ok)
	assert.Equal(t, 20, avg)

	_, ok = AverageScore("nobody", c.Statuses)
	assert.False(t, ok)

	assert.Equal(t, 40, MaxVivaScore(4))
}

func TestScoreBand(t *testing.T) {
	assert.Equal(t, BandGood, ScoreBand(30, 40))
	assert.Equal(t, BandAverage, ScoreBand(20, 40))
	assert.Equal(t, BandPoor, ScoreBand(10, 40))
	assert.Equal(t, "", ScoreBand(0, 0))
}

func TestDashboard(t *testing.T) {
	c := fixtures()

	all := Dashboard(c, "")
	assert.Equal(t, DashboardStats{
		TotalStudents:        3,
		TotalExperiments:     2,
		CompletedExperiments: 3,
		PendingExperiments:   3,
		CompletedVivas:       3,
		PendingVivas:         3,
		CompletionRate:       50,
		AverageScorePercent:  60,
	}, all)

	secA := Dashboard(c, "A")
	assert.Equal(t, 2, secA.TotalStudents)
	assert.Equal(t, 2, secA.CompletedExperiments)
	assert.Equal(t, 50.0, secA.CompletionRate)
	assert.Equal(t, 75.0, secA.AverageScorePercent)

	empty := Dashboard(Collections{}, "")
	assert.Equal(t, 0.0, empty.CompletionRate)
	assert.Equal(t, 0, empty.PendingExperiments)
}

func TestSectionSummaries(t *testing.T) {
	c := fixtures()

	sums := SectionSummaries(c, "f1")
	require.Len(t, sums, 1)
	assert.Equal(t, "A", sums[0].Section.ID)
	assert.Equal(t, 2, sums[0].StudentCount)
	assert.Equal(t, 2, sums[0].CompletedExperiments)
	assert.Equal(t, 2, sums[0].CompletedVivas)
	assert.Equal(t, 50.0, sums[0].CompletionRate)

	assert.Empty(t, SectionSummaries(c, "nobody"))
}

func TestReport(t *testing.T) {
	c := fixtures()

	rep := Report(c, c.Students[0])
	assert.Equal(t, 20, rep.TotalScore)
	assert.Equal(t, null.IntFrom(20), rep.AverageScore)
	require.Len(t, rep.Rows, 2)

	assert.Equal(t, "e1", rep.Rows[0].Experiment.ID)
	assert.Equal(t, 20, rep.Rows[0].MaxScore)
	assert.Equal(t, BandGood, rep.Rows[0].Band)

	assert.Equal(t, "e2", rep.Rows[1].Experiment.ID)
	assert.Equal(t, 10, rep.Rows[1].MaxScore)
	assert.False(t, rep.Rows[1].Score.Valid)
	assert.Equal(t, "", rep.Rows[1].Band)

	fresh := Report(c, student("s9", "A"))
	assert.False(t, fresh.AverageScore.Valid)
	for _, row := range fresh.Rows {
		assert.Equal(t, "s9", row.Status.StudentID)
		assert.Equal(t, "", row.Status.ID)
	}
}

func TestStudentsAndSectionsFilters(t *testing.T) {
	c := fixtures()
	assert.Len(t, StudentsBySection(c.Students, "A"), 2)
	assert.Empty(t, StudentsBySection(c.Students, "Z"))
	assert.Len(t, SectionsForFaculty(c.Sections, "f2"), 1)
}
