package lab

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/nbkrcse/labtrack/core"
)

// ID prefixes
const (
	SectionIDPrefix    = "sec"
	ExperimentIDPrefix = "exp"
	QuestionIDPrefix   = "q"
	StatusIDPrefix     = "st"
)

// PointsPerQuestion is the score of a correctly answered viva question.
const PointsPerQuestion = 10

// OptionsPerQuestion is the exact number of options of a viva question.
const OptionsPerQuestion = 4

type (
	Section struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		FacultyID string `json:"faculty_id"`
	}

	Experiment struct {
		ID          string      `json:"id"`
		Title       string      `json:"title"`
		Description string      `json:"description"`
		PDFURL      null.String `json:"pdf_url"`
		FacultyID   string      `json:"faculty_id"`
		CreatedAt   time.Time   `json:"created_at"`
	}

	VivaQuestion struct {
		ID                 string   `json:"id"`
		ExperimentID       string   `json:"experiment_id"`
		Question           string   `json:"question"`
		Options            []string `json:"options"`
		CorrectOptionIndex int      `json:"correct_option_index"`
	}

	VivaAnswer struct {
		QuestionID          string `json:"question_id"`
		SelectedOptionIndex int    `json:"selected_option_index"`
		IsCorrect           bool   `json:"is_correct"`
	}

	// Status is the progress of one student on one experiment.
	// There is at most one Status per (StudentID, ExperimentID).
	Status struct {
		ID                    string       `json:"id"`
		StudentID             string       `json:"student_id"`
		ExperimentID          string       `json:"experiment_id"`
		PacketTracerCompleted bool         `json:"packet_tracer_completed"`
		ExperimentCompleted   bool         `json:"experiment_completed"`
		PDFSubmitted          bool         `json:"pdf_submitted"`
		PDFURL                null.String  `json:"pdf_url"`
		VivaCompleted         bool         `json:"viva_completed"`
		VivaAnswers           []VivaAnswer `json:"viva_answers"`
		VivaScore             null.Int     `json:"viva_score"`
		FacultyRemarks        null.String  `json:"faculty_remarks"`
		LastUpdated           time.Time    `json:"last_updated"` // UTC
	}
)

// Key returns the logical key of the status.
func (st Status) Key() StatusKey {
	return StatusKey{StudentID: st.StudentID, ExperimentID: st.ExperimentID}
}

type StatusKey struct {
	StudentID    string
	ExperimentID string
}

type NewSection struct {
	Name      string `json:"name" validate:"required,notblank"`
	FacultyID string `json:"faculty_id" validate:"required"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type UpdateSection struct {
	Name string `json:"name" validate:"required,notblank"`
}

func (us *UpdateSection) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	return validate.Struct(us)
}

type NewExperiment struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
	PDFURL      string `json:"pdf_url" validate:"omitempty,url"`
	FacultyID   string `json:"faculty_id" validate:"required"`
}

func (ne *NewExperiment) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.PDFURL = core.CleanString(ne.PDFURL)
	return validate.Struct(ne)
}

// UpdateExperiment replaces the experiment's editable fields. An empty PDFURL clears it.
type UpdateExperiment struct {
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
	PDFURL      string `json:"pdf_url" validate:"omitempty,url"`
}

func (ue *UpdateExperiment) Validate(validate *validator.Validate) error {
	ue.Title = core.CleanString(ue.Title)
	ue.Description = core.CleanString(ue.Description)
	ue.PDFURL = core.CleanString(ue.PDFURL)
	return validate.Struct(ue)
}

type NewVivaQuestion struct {
	ExperimentID       string   `json:"experiment_id" validate:"required"`
	Question           string   `json:"question" validate:"required,notblank"`
	Options            []string `json:"options" validate:"vivaoptions"`
	CorrectOptionIndex int      `json:"correct_option_index"`
}

func (nq *NewVivaQuestion) Validate(validate *validator.Validate) error {
	nq.Question = core.CleanString(nq.Question)
	for i, opt := range nq.Options {
		nq.Options[i] = core.CleanString(opt)
	}
	return validate.Struct(nq)
}

type UpdateVivaQuestion struct {
	Question           string   `json:"question" validate:"required,notblank"`
	Options            []string `json:"options" validate:"vivaoptions"`
	CorrectOptionIndex int      `json:"correct_option_index"`
}

func (uq *UpdateVivaQuestion) Validate(validate *validator.Validate) error {
	uq.Question = core.CleanString(uq.Question)
	for i, opt := range uq.Options {
		uq.Options[i] = core.CleanString(opt)
	}
	return validate.Struct(uq)
}

// StatusUpdate carries the faculty-editable fields of a status. Nil fields are left unchanged.
type StatusUpdate struct {
	PacketTracerCompleted *bool   `json:"packet_tracer_completed"`
	ExperimentCompleted   *bool   `json:"experiment_completed"`
	FacultyRemarks        *string `json:"faculty_remarks"`
}

func (su StatusUpdate) IsEmpty() bool {
	return su.PacketTracerCompleted == nil && su.ExperimentCompleted == nil && su.FacultyRemarks == nil
}

// VivaSubmission maps question IDs to the selected option index.
type VivaSubmission struct {
	Answers map[string]int `json:"answers" validate:"required"`
}
