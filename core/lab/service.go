package lab

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/nbkrcse/labtrack/core"
)

var (
	// errors
	ErrVivaSubmitted = errors.New("viva has already been submitted")
	ErrNoQuestions   = errors.New("experiment has no viva questions")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Repository interface {
		QuerySections(ctx context.Context) ([]Section, error)
		CreateSection(ctx context.Context, sec Section) (Section, error)
		UpdateSection(ctx context.Context, sec Section) (Section, error)

		QueryExperiments(ctx context.Context) ([]Experiment, error)
		CreateExperiment(ctx context.Context, exp Experiment) (Experiment, error)
		UpdateExperiment(ctx context.Context, exp Experiment) (Experiment, error)

		QueryVivaQuestions(ctx context.Context) ([]VivaQuestion, error)
		CreateVivaQuestion(ctx context.Context, q VivaQuestion) (VivaQuestion, error)
		UpdateVivaQuestion(ctx context.Context, q VivaQuestion) (VivaQuestion, error)

		QueryStatuses(ctx context.Context) ([]Status, error)
		// UpsertStatus replaces the status with the same (StudentID, ExperimentID), keeping its ID,
		// or appends it with a fresh ID. The ID of st is ignored.
		UpsertStatus(ctx context.Context, st Status) (Status, error)
	}

	// GradeFunc grades a viva submission against the experiment's questions.
	GradeFunc func(questions []VivaQuestion, selections map[string]int) ([]VivaAnswer, int, error)

	Service struct {
		repo     Repository
		validate *validator.Validate
		grade    GradeFunc

		// serializes read-modify-write cycles on statuses
		statusMu sync.Mutex
	}
)

func NewService(repo Repository, validate *validator.Validate, grade GradeFunc) *Service {
	return &Service{repo: repo, validate: validate, grade: grade}
}

// Sections

func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Section{}, err
	}
	return svc.repo.CreateSection(ctx, Section{Name: ns.Name, FacultyID: ns.FacultyID})
}

func (svc *Service) UpdateSection(ctx context.Context, id string, us UpdateSection) (Section, error) {
	sec, err := svc.GetSection(ctx, id)
	if err != nil {
		return Section{}, err
	}
	if err := us.Validate(svc.validate); err != nil {
		return Section{}, err
	}
	sec.Name = us.Name
	return svc.repo.UpdateSection(ctx, sec)
}

func (svc *Service) QuerySections(ctx context.Context) ([]Section, error) {
	return svc.repo.QuerySections(ctx)
}

func (svc *Service) GetSection(ctx context.Context, id string) (Section, error) {
	secs, err := svc.repo.QuerySections(ctx)
	if err != nil {
		return Section{}, err
	}
	for _, sec := range secs {
		if sec.ID == id {
			return sec, nil
		}
	}
	return Section{}, core.NewNotFoundError("section", id)
}

// SectionsForFaculty returns the sections owned by the faculty member.
func (svc *Service) SectionsForFaculty(ctx context.Context, facultyID string) ([]Section, error) {
	secs, err := svc.repo.QuerySections(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]Section, 0, len(secs))
	for _, sec := range secs {
		if sec.FacultyID == facultyID {
			res = append(res, sec)
		}
	}
	return res, nil
}

// Experiments

func (svc *Service) CreateExperiment(ctx context.Context, ne NewExperiment) (Experiment, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Experiment{}, err
	}
	return svc.repo.CreateExperiment(ctx, Experiment{
		Title:       ne.Title,
		Description: ne.Description,
		PDFURL:      null.NewString(ne.PDFURL, ne.PDFURL != ""),
		FacultyID:   ne.FacultyID,
		CreatedAt:   nowFunc(),
	})
}

func (svc *Service) UpdateExperiment(ctx context.Context, id string, ue UpdateExperiment) (Experiment, error) {
	exp, err := svc.GetExperiment(ctx, id)
	if err != nil {
		return Experiment{}, err
	}
	if err := ue.Validate(svc.validate); err != nil {
		return Experiment{}, err
	}
	exp.Title = ue.Title
	exp.Description = ue.Description
	exp.PDFURL = null.NewString(ue.PDFURL, ue.PDFURL != "")
	return svc.repo.UpdateExperiment(ctx, exp)
}

func (svc *Service) QueryExperiments(ctx context.Context) ([]Experiment, error) {
	return svc.repo.QueryExperiments(ctx)
}

func (svc *Service) GetExperiment(ctx context.Context, id string) (Experiment, error) {
	exps, err := svc.repo.QueryExperiments(ctx)
	if err != nil {
		return Experiment{}, err
	}
	for _, exp := range exps {
		if exp.ID == id {
			return exp, nil
		}
	}
	return Experiment{}, core.NewNotFoundError("experiment", id)
}

// Viva questions

func (svc *Service) CreateVivaQuestion(ctx context.Context, nq NewVivaQuestion) (VivaQuestion, error) {
	if err := nq.Validate(svc.validate); err != nil {
		return VivaQuestion{}, err
	}
	if _, err := svc.GetExperiment(ctx, nq.ExperimentID); err != nil {
		return VivaQuestion{}, err
	}
	return svc.repo.CreateVivaQuestion(ctx, VivaQuestion{
		ExperimentID:       nq.ExperimentID,
		Question:           nq.Question,
		Options:            nq.Options,
		CorrectOptionIndex: nq.CorrectOptionIndex,
	})
}

func (svc *Service) UpdateVivaQuestion(ctx context.Context, id string, uq UpdateVivaQuestion) (VivaQuestion, error) {
	qs, err := svc.repo.QueryVivaQuestions(ctx)
	if err != nil {
		return VivaQuestion{}, err
	}
	var (
		q     VivaQuestion
		found bool
	)
	for _, vq := range qs {
		if vq.ID == id {
			q, found = vq, true
			break
		}
	}
	if !found {
		return VivaQuestion{}, core.NewNotFoundError("viva question", id)
	}
	if err := uq.Validate(svc.validate); err != nil {
		return VivaQuestion{}, err
	}
	q.Question = uq.Question
	q.Options = uq.Options
	q.CorrectOptionIndex = uq.CorrectOptionIndex
	return svc.repo.UpdateVivaQuestion(ctx, q)
}

func (svc *Service) QueryVivaQuestions(ctx context.Context) ([]VivaQuestion, error) {
	return svc.repo.QueryVivaQuestions(ctx)
}

func (svc *Service) QuestionsForExperiment(ctx context.Context, experimentID string) ([]VivaQuestion, error) {
	qs, err := svc.repo.QueryVivaQuestions(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]VivaQuestion, 0, len(qs))
	for _, q := range qs {
		if q.ExperimentID == experimentID {
			res = append(res, q)
		}
	}
	return res, nil
}

// Progress

func (svc *Service) QueryStatuses(ctx context.Context) ([]Status, error) {
	return svc.repo.QueryStatuses(ctx)
}

func (svc *Service) StatusesForStudent(ctx context.Context, studentID string) ([]Status, error) {
	sts, err := svc.repo.QueryStatuses(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]Status, 0)
	for _, st := range sts {
		if st.StudentID == studentID {
			res = append(res, st)
		}
	}
	return res, nil
}

// StatusFor returns the student's status on the experiment, or an empty status with ID "" if there is none.
func (svc *Service) StatusFor(ctx context.Context, studentID, experimentID string) (Status, error) {
	sts, err := svc.repo.QueryStatuses(ctx)
	if err != nil {
		return Status{}, err
	}
	for _, st := range sts {
		if st.StudentID == studentID && st.ExperimentID == experimentID {
			return st, nil
		}
	}
	return Status{StudentID: studentID, ExperimentID: experimentID}, nil
}

// UpdateStatus upserts st as is, apart from LastUpdated.
func (svc *Service) UpdateStatus(ctx context.Context, st Status) (Status, error) {
	svc.statusMu.Lock()
	defer svc.statusMu.Unlock()

	prev, err := svc.StatusFor(ctx, st.StudentID, st.ExperimentID)
	if err != nil {
		return Status{}, err
	}
	touch(&st, prev.LastUpdated)
	return svc.repo.UpsertStatus(ctx, st)
}

// mutateStatus loads the status of (studentID, experimentID), applies fn and upserts the result.
func (svc *Service) mutateStatus(ctx context.Context, studentID, experimentID string, fn func(st *Status) error) (Status, error) {
	if _, err := svc.GetExperiment(ctx, experimentID); err != nil {
		return Status{}, err
	}

	svc.statusMu.Lock()
	defer svc.statusMu.Unlock()

	st, err := svc.StatusFor(ctx, studentID, experimentID)
	if err != nil {
		return Status{}, err
	}
	if err := fn(&st); err != nil {
		return Status{}, err
	}
	touch(&st, st.LastUpdated)
	return svc.repo.UpsertStatus(ctx, st)
}

func (svc *Service) ApplyStatusUpdate(ctx context.Context, studentID, experimentID string, su StatusUpdate) (Status, error) {
	return svc.mutateStatus(ctx, studentID, experimentID, func(st *Status) error {
		if su.PacketTracerCompleted != nil {
			st.PacketTracerCompleted = *su.PacketTracerCompleted
		}
		if su.ExperimentCompleted != nil {
			st.ExperimentCompleted = *su.ExperimentCompleted
		}
		if su.FacultyRemarks != nil {
			remarks := core.CleanString(*su.FacultyRemarks)
			st.FacultyRemarks = null.NewString(remarks, remarks != "")
		}
		return nil
	})
}

func (svc *Service) SetPacketTracerCompleted(ctx context.Context, studentID, experimentID string, done bool) (Status, error) {
	return svc.ApplyStatusUpdate(ctx, studentID, experimentID, StatusUpdate{PacketTracerCompleted: &done})
}

func (svc *Service) SetExperimentCompleted(ctx context.Context, studentID, experimentID string, done bool) (Status, error) {
	return svc.ApplyStatusUpdate(ctx, studentID, experimentID, StatusUpdate{ExperimentCompleted: &done})
}

func (svc *Service) SaveRemarks(ctx context.Context, studentID, experimentID, remarks string) (Status, error) {
	return svc.ApplyStatusUpdate(ctx, studentID, experimentID, StatusUpdate{FacultyRemarks: &remarks})
}

// SubmitPDF records the stored proof-of-work PDF. Re-submission replaces the previous URL.
func (svc *Service) SubmitPDF(ctx context.Context, studentID, experimentID, url string) (Status, error) {
	if url == "" {
		return Status{}, core.NewValidationError(nil, core.FieldError{Field: "pdf_url", Error: "this field is required"})
	}
	return svc.mutateStatus(ctx, studentID, experimentID, func(st *Status) error {
		st.PDFSubmitted = true
		st.PDFURL = null.StringFrom(url)
		return nil
	})
}

// SubmitViva grades the submission and records answers and score. Only one submission is accepted.
func (svc *Service) SubmitViva(ctx context.Context, studentID, experimentID string, sub VivaSubmission) (Status, error) {
	questions, err := svc.QuestionsForExperiment(ctx, experimentID)
	if err != nil {
		return Status{}, err
	}
	return svc.mutateStatus(ctx, studentID, experimentID, func(st *Status) error {
		if st.VivaCompleted {
			return core.NewValidationError(ErrVivaSubmitted, core.FieldError{Field: "answers", Error: ErrVivaSubmitted.Error()})
		}
		answers, score, err := svc.grade(questions, sub.Answers)
		if err != nil {
			return err
		}
		st.VivaCompleted = true
		st.VivaAnswers = answers
		st.VivaScore = null.IntFrom(score)
		return nil
	})
}

// touch sets LastUpdated to now, or just after prev when the clock has not moved past it.
func touch(st *Status, prev time.Time) {
	now := nowFunc()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	st.LastUpdated = now
}
