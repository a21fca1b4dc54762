// Package snapshot keeps an in-memory copy of every collection for read-heavy views
// (dashboards, reports). Lookups never touch the store; Refresh reloads it.
package snapshot

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
)

type Snapshot struct {
	users  user.Repository
	lab    lab.Repository
	logger core.Logger

	mu sync.RWMutex
	c  stats.Collections
}

func New(users user.Repository, labRepo lab.Repository, logger core.Logger) *Snapshot {
	return &Snapshot{users: users, lab: labRepo, logger: logger}
}

// Refresh reloads all collections. On failure the error is logged, the previous
// collections are kept and the error is returned.
func (s *Snapshot) Refresh(ctx context.Context) error {
	c, err := s.load(ctx)
	if err != nil {
		s.logger.Error("refreshing snapshot", err)
		return err
	}

	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
	return nil
}

func (s *Snapshot) load(ctx context.Context) (c stats.Collections, err error) {
	if c.Faculty, err = s.users.QueryFaculty(ctx); err != nil {
		return c, errors.Wrap(err, "loading faculty")
	}
	if c.Students, err = s.users.QueryStudents(ctx); err != nil {
		return c, errors.Wrap(err, "loading students")
	}
	if c.Sections, err = s.lab.QuerySections(ctx); err != nil {
		return c, errors.Wrap(err, "loading sections")
	}
	if c.Experiments, err = s.lab.QueryExperiments(ctx); err != nil {
		return c, errors.Wrap(err, "loading experiments")
	}
	if c.Questions, err = s.lab.QueryVivaQuestions(ctx); err != nil {
		return c, errors.Wrap(err, "loading viva questions")
	}
	if c.Statuses, err = s.lab.QueryStatuses(ctx); err != nil {
		return c, errors.Wrap(err, "loading statuses")
	}
	return c, nil
}

// Collections returns the loaded collections. Callers must not modify the slices.
func (s *Snapshot) Collections() stats.Collections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

func (s *Snapshot) StudentByID(id string) (user.User, bool) {
	for _, stu := range s.Collections().Students {
		if stu.ID == id {
			return stu, true
		}
	}
	return user.User{}, false
}

func (s *Snapshot) ExperimentByID(id string) (lab.Experiment, bool) {
	for _, exp := range s.Collections().Experiments {
		if exp.ID == id {
			return exp, true
		}
	}
	return lab.Experiment{}, false
}

func (s *Snapshot) QuestionsForExperiment(experimentID string) []lab.VivaQuestion {
	res := make([]lab.VivaQuestion, 0)
	for _, q := range s.Collections().Questions {
		if q.ExperimentID == experimentID {
			res = append(res, q)
		}
	}
	return res
}

func (s *Snapshot) StatusFor(studentID, experimentID string) (lab.Status, bool) {
	key := lab.StatusKey{StudentID: studentID, ExperimentID: experimentID}
	for _, st := range s.Collections().Statuses {
		if st.Key() == key {
			return st, true
		}
	}
	return lab.Status{}, false
}

func (s *Snapshot) StudentsBySection(sectionID string) []user.User {
	return stats.StudentsBySection(s.Collections().Students, sectionID)
}

// ExperimentsCompletedCount counts completed experiments, limited to a section unless sectionID is empty.
func (s *Snapshot) ExperimentsCompletedCount(sectionID string) int {
	c := s.Collections()
	return stats.ExperimentsCompletedCount(c.Statuses, c.Students, sectionID)
}

func (s *Snapshot) VivaCompletedCount(sectionID string) int {
	c := s.Collections()
	return stats.VivaCompletedCount(c.Statuses, c.Students, sectionID)
}
