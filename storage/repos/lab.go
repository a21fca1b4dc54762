package repos

import (
	"context"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
)

type labRepository struct {
	db *DB
}

var _ lab.Repository = (*labRepository)(nil) // interface compliance check

func NewLabRepository(db *DB) *labRepository {
	return &labRepository{db: db}
}

// Sections

func (repo labRepository) querySections(ctx context.Context) ([]lab.Section, error) {
	secs := make([]lab.Section, 0)
	err := repo.db.load(ctx, core.CollectionSections, &secs)
	return secs, err
}

func (repo labRepository) QuerySections(ctx context.Context) ([]lab.Section, error) {
	return repo.querySections(ctx)
}

func (repo labRepository) CreateSection(ctx context.Context, sec lab.Section) (lab.Section, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	secs, err := repo.querySections(ctx)
	if err != nil {
		return lab.Section{}, err
	}
	sec.ID = core.NewID(lab.SectionIDPrefix)
	if err := repo.db.save(ctx, core.CollectionSections, append(secs, sec)); err != nil {
		return lab.Section{}, err
	}
	return sec, nil
}

func (repo labRepository) UpdateSection(ctx context.Context, sec lab.Section) (lab.Section, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	secs, err := repo.querySections(ctx)
	if err != nil {
		return lab.Section{}, err
	}
	for i := range secs {
		if secs[i].ID == sec.ID {
			secs[i] = sec
			if err := repo.db.save(ctx, core.CollectionSections, secs); err != nil {
				return lab.Section{}, err
			}
			return sec, nil
		}
	}
	return lab.Section{}, core.NewNotFoundError("section", sec.ID)
}

// Experiments

func (repo labRepository) queryExperiments(ctx context.Context) ([]lab.Experiment, error) {
	exps := make([]lab.Experiment, 0)
	err := repo.db.load(ctx, core.CollectionExperiments, &exps)
	return exps, err
}

func (repo labRepository) QueryExperiments(ctx context.Context) ([]lab.Experiment, error) {
	return repo.queryExperiments(ctx)
}

func (repo labRepository) CreateExperiment(ctx context.Context, exp lab.Experiment) (lab.Experiment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	exps, err := repo.queryExperiments(ctx)
	if err != nil {
		return lab.Experiment{}, err
	}
	exp.ID = core.NewID(lab.ExperimentIDPrefix)
	if err := repo.db.save(ctx, core.CollectionExperiments, append(exps, exp)); err != nil {
		return lab.Experiment{}, err
	}
	return exp, nil
}

func (repo labRepository) UpdateExperiment(ctx context.Context, exp lab.Experiment) (lab.Experiment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	exps, err := repo.queryExperiments(ctx)
	if err != nil {
		return lab.Experiment{}, err
	}
	for i := range exps {
		if exps[i].ID == exp.ID {
			exps[i] = exp
			if err := repo.db.save(ctx, core.CollectionExperiments, exps); err != nil {
				return lab.Experiment{}, err
			}
			return exp, nil
		}
	}
	return lab.Experiment{}, core.NewNotFoundError("experiment", exp.ID)
}

// Viva questions

func (repo labRepository) queryQuestions(ctx context.Context) ([]lab.VivaQuestion, error) {
	qs := make([]lab.VivaQuestion, 0)
	err := repo.db.load(ctx, core.CollectionQuestions, &qs)
	return qs, err
}

func (repo labRepository) QueryVivaQuestions(ctx context.Context) ([]lab.VivaQuestion, error) {
	return repo.queryQuestions(ctx)
}

func (repo labRepository) CreateVivaQuestion(ctx context.Context, q lab.VivaQuestion) (lab.VivaQuestion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	qs, err := repo.queryQuestions(ctx)
	if err != nil {
		return lab.VivaQuestion{}, err
	}
	q.ID = core.NewID(lab.QuestionIDPrefix)
	if err := repo.db.save(ctx, core.CollectionQuestions, append(qs, q)); err != nil {
		return lab.VivaQuestion{}, err
	}
	return q, nil
}

func (repo labRepository) UpdateVivaQuestion(ctx context.Context, q lab.VivaQuestion) (lab.VivaQuestion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	qs, err := repo.queryQuestions(ctx)
	if err != nil {
		return lab.VivaQuestion{}, err
	}
	for i := range qs {
		if qs[i].ID == q.ID {
			qs[i] = q
			if err := repo.db.save(ctx, core.CollectionQuestions, qs); err != nil {
				return lab.VivaQuestion{}, err
			}
			return q, nil
		}
	}
	return lab.VivaQuestion{}, core.NewNotFoundError("viva question", q.ID)
}

// Statuses

func (repo labRepository) queryStatuses(ctx context.Context) ([]lab.Status, error) {
	sts := make([]lab.Status, 0)
	err := repo.db.load(ctx, core.CollectionStatuses, &sts)
	return sts, err
}

func (repo labRepository) QueryStatuses(ctx context.Context) ([]lab.Status, error) {
	return repo.queryStatuses(ctx)
}

// UpsertStatus fails with a not found error when the student does not exist. The check runs under
// the lock DeleteStudent takes, so a status can not outlive its student.
func (repo labRepository) UpsertStatus(ctx context.Context, st lab.Status) (lab.Status, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkStudent(ctx, st.StudentID); err != nil {
		return lab.Status{}, err
	}

	sts, err := repo.queryStatuses(ctx)
	if err != nil {
		return lab.Status{}, err
	}

	key := st.Key()
	for i := range sts {
		if sts[i].Key() == key {
			st.ID = sts[i].ID
			sts[i] = st
			if err := repo.db.save(ctx, core.CollectionStatuses, sts); err != nil {
				return lab.Status{}, err
			}
			return st, nil
		}
	}

	st.ID = core.NewID(lab.StatusIDPrefix)
	if err := repo.db.save(ctx, core.CollectionStatuses, append(sts, st)); err != nil {
		return lab.Status{}, err
	}
	return st, nil
}

func (repo labRepository) checkStudent(ctx context.Context, id string) error {
	var students []struct {
		ID string `json:"id"`
	}
	if err := repo.db.load(ctx, core.CollectionStudents, &students); err != nil {
		return err
	}
	for _, stu := range students {
		if stu.ID == id {
			return nil
		}
	}
	return core.NewNotFoundError("student", id)
}
