package tests

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"github.com/xuri/excelize/v2"

	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/report"
	"github.com/nbkrcse/labtrack/tests"
)

type statsFixture struct {
	fac        user.User
	secA, secB lab.Section
	token      string
}

// seedStats: two students in CSE-A, one in CSE-B, two experiments of one question each.
func seedStats(t *testing.T, env *apiEnv) statsFixture {
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	secA := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	secB := testutil.CreateSection(t, env.LabRepo, "CSE-B", fac.ID)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", secA.ID)
	env.student(t, "Bhanu", "bhanu@nbkr.test", "21CS002", secA.ID)
	chitra := env.student(t, "Chitra", "chitra@nbkr.test", "21CS003", secB.ID)
	exp1 := testutil.CreateExperiment(t, env.LabRepo, "Static routing", fac.ID)
	exp2 := testutil.CreateExperiment(t, env.LabRepo, "VLANs", fac.ID)
	testutil.CreateQuestion(t, env.LabRepo, exp1.ID, "What is a route?", 0)
	testutil.CreateQuestion(t, env.LabRepo, exp2.ID, "What is a trunk?", 0)

	testutil.UpsertStatus(t, env.LabRepo, lab.Status{
		StudentID: anil.ID, ExperimentID: exp1.ID, ExperimentCompleted: true,
		VivaCompleted: true, VivaScore: null.IntFrom(10), FacultyRemarks: null.StringFrom("=SUM(A1)"),
	})
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: anil.ID, ExperimentID: exp2.ID, ExperimentCompleted: true})
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{
		StudentID: chitra.ID, ExperimentID: exp1.ID, ExperimentCompleted: true,
		VivaCompleted: true, VivaScore: null.IntFrom(0),
	})
	return statsFixture{fac: fac, secA: secA, secB: secB, token: getToken(t, env, fac)}
}

func Test_statsApi_dashboard(t *testing.T) {
	env := setup(t)
	fx := seedStats(t, env)
	stu := env.student(t, "Dev", "dev@nbkr.test", "21CS004", fx.secB.ID)

	runTests(t, env, []httpTest{
		{name: "faculty required", path: "/v1/stats/dashboard", token: getToken(t, env, stu), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "unknown section", path: "/v1/stats/dashboard?section=sec-nope", token: fx.token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("section", "sec-nope")),
		},
	})

	tests := []struct {
		name    string
		section string
		want    stats.DashboardStats
	}{
		{
			name: "all students",
			want: stats.DashboardStats{
				TotalStudents: 4, TotalExperiments: 2, CompletedExperiments: 3, PendingExperiments: 5,
				CompletedVivas: 2, PendingVivas: 6,
			},
		},
		{
			name: "CSE-A", section: fx.secA.ID,
			want: stats.DashboardStats{
				SectionID: fx.secA.ID, TotalStudents: 2, TotalExperiments: 2, CompletedExperiments: 2, PendingExperiments: 2,
				CompletedVivas: 1, PendingVivas: 3,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/v1/stats/dashboard"
			if tt.section != "" {
				path += "?section=" + tt.section
			}
			rec := env.serve(httpTest{method: http.MethodGet, path: path, token: fx.token})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got stats.DashboardStats
			unmarshal(t, rec, &got)
			got.CompletionRate, got.AverageScorePercent = 0, 0
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_statsApi_sections(t *testing.T) {
	env := setup(t)
	fx := seedStats(t, env)
	other := env.faculty(t, "Alan Turing", "alan@nbkr.test")
	testutil.CreateSection(t, env.LabRepo, "ECE-A", other.ID)

	rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/stats/sections", token: fx.token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got []stats.SectionSummary
	unmarshal(t, rec, &got)
	require.Len(t, got, 2, "own sections only")
	assert.Equal(t, fx.secA, got[0].Section)
	assert.Equal(t, 2, got[0].StudentCount)
	assert.Equal(t, 2, got[0].CompletedExperiments)
	assert.Equal(t, 50.0, got[0].CompletionRate)
	assert.Equal(t, fx.secB, got[1].Section)
	assert.Equal(t, 1, got[1].StudentCount)
	assert.Equal(t, 1, got[1].CompletedVivas)
}

func Test_statsApi_export(t *testing.T) {
	env := setup(t)
	fx := seedStats(t, env)

	tests := []struct {
		name     string
		query    string
		filename string
		rows     int
	}{
		{name: "all", filename: "progress.xlsx", rows: 6},
		{name: "section", query: "?section=" + fx.secA.ID, filename: "progress-" + fx.secA.ID + ".xlsx", rows: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/stats/export" + tt.query, token: fx.token})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, reportsvc.ContentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="`+tt.filename+`"`, rec.Header().Get("Content-Disposition"))

			f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
			require.NoError(t, err)
			defer f.Close()
			rows, err := f.GetRows(reportsvc.SheetName)
			require.NoError(t, err)
			require.Len(t, rows, tt.rows+1, "header + one row per student and experiment")

			assert.Equal(t, []string{"21CS001", "Anil", "CSE-A", "Static routing"}, rows[1][:4])
			assert.Equal(t, "'=SUM(A1)", rows[1][10], "formulas are neutralized")
		})
	}
}
