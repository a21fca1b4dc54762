package snapshot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/storage/kv/memkv"
	"github.com/nbkrcse/labtrack/tests"
)

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	env := testutil.Setup(t)

	fac := testutil.CreateFaculty(t, env.UserRepo, "Faculty", "faculty@test.test", "pwd123")
	secA := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	secB := testutil.CreateSection(t, env.LabRepo, "CSE-B", fac.ID)
	s1 := testutil.CreateStudent(t, env.UserRepo, "S1", "s1@test.test", "R1", secA.ID, "pw", false)
	s2 := testutil.CreateStudent(t, env.UserRepo, "S2", "s2@test.test", "R2", secB.ID, "pw", false)
	exp1 := testutil.CreateExperiment(t, env.LabRepo, "Subnetting", fac.ID)
	exp2 := testutil.CreateExperiment(t, env.LabRepo, "Routing", fac.ID)
	testutil.CreateQuestion(t, env.LabRepo, exp1.ID, "Q1", 0)
	testutil.CreateQuestion(t, env.LabRepo, exp1.ID, "Q2", 1)
	testutil.CreateQuestion(t, env.LabRepo, exp2.ID, "Q3", 2)
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: s1.ID, ExperimentID: exp1.ID, ExperimentCompleted: true, VivaCompleted: true})
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: s1.ID, ExperimentID: exp2.ID, ExperimentCompleted: true})
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: s2.ID, ExperimentID: exp1.ID, ExperimentCompleted: true})

	snap := snapshot.New(env.UserRepo, env.LabRepo, env.Logger)
	assert.Empty(t, snap.Collections().Students, "nothing loaded before Refresh")
	require.NoError(t, snap.Refresh(ctx))

	c := snap.Collections()
	assert.Len(t, c.Faculty, 1)
	assert.Len(t, c.Students, 2)
	assert.Len(t, c.Sections, 2)
	assert.Len(t, c.Experiments, 2)
	assert.Len(t, c.Questions, 3)
	assert.Len(t, c.Statuses, 3)

	got, ok := snap.StudentByID(s2.ID)
	assert.True(t, ok)
	assert.Equal(t, "R2", got.RollNumber())
	_, ok = snap.StudentByID(fac.ID)
	assert.False(t, ok, "faculty are not students")

	exp, ok := snap.ExperimentByID(exp2.ID)
	assert.True(t, ok)
	assert.Equal(t, "Routing", exp.Title)
	_, ok = snap.ExperimentByID("exp-nope")
	assert.False(t, ok)

	assert.Len(t, snap.QuestionsForExperiment(exp1.ID), 2)
	assert.Empty(t, snap.QuestionsForExperiment("exp-nope"))

	st, ok := snap.StatusFor(s1.ID, exp1.ID)
	assert.True(t, ok)
	assert.True(t, st.VivaCompleted)
	_, ok = snap.StatusFor(s2.ID, exp2.ID)
	assert.False(t, ok)

	assert.Len(t, snap.StudentsBySection(secA.ID), 1)

	tests := []struct {
		section       string
		wantCompleted int
		wantVivas     int
	}{
		{section: "", wantCompleted: 3, wantVivas: 1},
		{section: secA.ID, wantCompleted: 2, wantVivas: 1},
		{section: secB.ID, wantCompleted: 1, wantVivas: 0},
	}
	for _, tt := range tests {
		if got := snap.ExperimentsCompletedCount(tt.section); got != tt.wantCompleted {
			t.Errorf("ExperimentsCompletedCount(%q) = %d, want %d", tt.section, got, tt.wantCompleted)
		}
		if got := snap.VivaCompletedCount(tt.section); got != tt.wantVivas {
			t.Errorf("VivaCompletedCount(%q) = %d, want %d", tt.section, got, tt.wantVivas)
		}
	}
}

func TestSnapshot_Refresh_keepsPriorState(t *testing.T) {
	ctx := context.Background()
	env := testutil.Setup(t)
	fac := testutil.CreateFaculty(t, env.UserRepo, "Faculty", "faculty@test.test", "pwd123")
	testutil.CreateExperiment(t, env.LabRepo, "Subnetting", fac.ID)

	snap := snapshot.New(env.UserRepo, env.LabRepo, env.Logger)
	require.NoError(t, snap.Refresh(ctx))

	testutil.CreateExperiment(t, env.LabRepo, "Routing", fac.ID)
	env.Store.FailOn(memkv.OpGet, core.CollectionStatuses, errors.New("offline"))

	err := snap.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, core.IsStorage(err))
	assert.Len(t, snap.Collections().Experiments, 1, "prior state is kept")

	env.Store.FailOn(memkv.OpGet, core.CollectionStatuses, nil)
	require.NoError(t, snap.Refresh(ctx))
	assert.Len(t, snap.Collections().Experiments, 2)
}
