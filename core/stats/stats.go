// Package stats derives progress statistics from loaded collections. It does no I/O.
package stats

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/user"
)

var errUnknownQuestion = errors.New("answer does not match a question of this experiment")

type Progress struct {
	CompletedExperiments int `json:"completed_experiments"`
	CompletedVivas       int `json:"completed_vivas"`
}

// round1 rounds to one decimal.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func sectionMembers(students []user.User, sectionID string) map[string]bool {
	members := make(map[string]bool, len(students))
	for _, s := range students {
		if s.SectionID() == sectionID {
			members[s.ID] = true
		}
	}
	return members
}

func countStatuses(statuses []lab.Status, students []user.User, sectionID string, pred func(lab.Status) bool) int {
	var members map[string]bool
	if sectionID != "" {
		members = sectionMembers(students, sectionID)
	}
	n := 0
	for _, st := range statuses {
		if !pred(st) {
			continue
		}
		if members != nil && !members[st.StudentID] {
			continue
		}
		n++
	}
	return n
}

// ExperimentsCompletedCount counts statuses with ExperimentCompleted set.
// A non-empty sectionID restricts the count to students of that section.
func ExperimentsCompletedCount(statuses []lab.Status, students []user.User, sectionID string) int {
	return countStatuses(statuses, students, sectionID, func(st lab.Status) bool { return st.ExperimentCompleted })
}

// VivaCompletedCount counts statuses with VivaCompleted set.
// A non-empty sectionID restricts the count to students of that section.
func VivaCompletedCount(statuses []lab.Status, students []user.User, sectionID string) int {
	return countStatuses(statuses, students, sectionID, func(st lab.Status) bool { return st.VivaCompleted })
}

func StudentProgress(studentID string, statuses []lab.Status) Progress {
	var p Progress
	for _, st := range statuses {
		if st.StudentID != studentID {
			continue
		}
		if st.ExperimentCompleted {
			p.CompletedExperiments++
		}
		if st.VivaCompleted {
			p.CompletedVivas++
		}
	}
	return p
}

// CompletionRate returns completed / (students * experiments) as a percentage rounded to one decimal.
// It is 0 when there are no students or no experiments.
func CompletionRate(sectionStudents []user.User, experiments []lab.Experiment, completed int) float64 {
	total := len(sectionStudents) * len(experiments)
	if total == 0 {
		return 0
	}
	return round1(float64(completed) / float64(total) * 100)
}

// GradeViva scores selections (question ID -> option index) against questions, awarding
// lab.PointsPerQuestion per correct answer. Every question must be answered.
func GradeViva(questions []lab.VivaQuestion, selections map[string]int) ([]lab.VivaAnswer, int, error) {
	if len(questions) == 0 {
		return nil, 0, core.NewValidationError(lab.ErrNoQuestions, core.FieldError{Field: "answers", Error: lab.ErrNoQuestions.Error()})
	}

	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	answered := 0
	for qID := range selections {
		if !known[qID] {
			return nil, 0, core.NewValidationError(errUnknownQuestion, core.FieldError{Field: "answers", Error: errUnknownQuestion.Error()})
		}
		answered++
	}
	if answered != len(questions) {
		return nil, 0, &core.IncompleteSubmissionError{Answered: answered, Total: len(questions)}
	}

	answers := make([]lab.VivaAnswer, 0, len(questions))
	score := 0
	for _, q := range questions {
		sel := selections[q.ID]
		if sel < 0 || sel >= len(q.Options) {
			return nil, 0, core.NewValidationError(nil, core.FieldError{Field: "answers", Error: "selected option is out of range"})
		}
		correct := sel == q.CorrectOptionIndex
		if correct {
			score += lab.PointsPerQuestion
		}
		answers = append(answers, lab.VivaAnswer{QuestionID: q.ID, SelectedOptionIndex: sel, IsCorrect: correct})
	}
	return answers, score, nil
}

// QuestionCountByExperiment maps experiment IDs to their number of viva questions.
func QuestionCountByExperiment(questions []lab.VivaQuestion) map[string]int {
	counts := make(map[string]int)
	for _, q := range questions {
		counts[q.ExperimentID]++
	}
	return counts
}

func MaxVivaScore(questionCount int) int {
	return questionCount * lab.PointsPerQuestion
}

// AverageScorePercent returns the sum of viva scores over the sum of maximum scores of completed vivas,
// as a percentage rounded to one decimal. It is 0 when no viva was completed.
func AverageScorePercent(statuses []lab.Status, questionCounts map[string]int) float64 {
	var sum, possible int
	for _, st := range statuses {
		if !st.VivaCompleted {
			continue
		}
		sum += st.VivaScore.Int
		possible += MaxVivaScore(questionCounts[st.ExperimentID])
	}
	if possible == 0 {
		return 0
	}
	return round1(float64(sum) / float64(possible) * 100)
}

// TotalVivaScore sums the viva scores of the student.
func TotalVivaScore(studentID string, statuses []lab.Status) int {
	total := 0
	for _, st := range statuses {
		if st.StudentID == studentID && st.VivaScore.Valid {
			total += st.VivaScore.Int
		}
	}
	return total
}

// AverageScore returns the rounded mean score of the student's completed vivas.
// ok is false when the student has not completed any viva.
func AverageScore(studentID string, statuses []lab.Status) (avg int, ok bool) {
	var sum, n int
	for _, st := range statuses {
		if st.StudentID == studentID && st.VivaCompleted {
			sum += st.VivaScore.Int
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int(math.Round(float64(sum) / float64(n))), true
}

// Score bands
const (
	BandGood    = "good"
	BandAverage = "average"
	BandPoor    = "poor"
)

// ScoreBand classifies a viva score: good from 70%, average from 40%.
func ScoreBand(score, maxScore int) string {
	if maxScore == 0 {
		return ""
	}
	ratio := float64(score) / float64(maxScore)
	switch {
	case ratio >= .7:
		return BandGood
	case ratio >= .4:
		return BandAverage
	default:
		return BandPoor
	}
}

func StudentsBySection(students []user.User, sectionID string) []user.User {
	res := make([]user.User, 0)
	for _, s := range students {
		if s.SectionID() == sectionID {
			res = append(res, s)
		}
	}
	return res
}

func SectionsForFaculty(sections []lab.Section, facultyID string) []lab.Section {
	res := make([]lab.Section, 0)
	for _, sec := range sections {
		if sec.FacultyID == facultyID {
			res = append(res, sec)
		}
	}
	return res
}
