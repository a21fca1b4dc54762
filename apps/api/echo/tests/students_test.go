package tests

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/files"
	"github.com/nbkrcse/labtrack/tests"
)

func notFound(entity, id string) httpErr {
	return httpErr{Error: fmt.Sprintf("%s %q not found", entity, id)}
}

func Test_studentApi_query(t *testing.T) {
	env := setup(t)
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	secA := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	secB := testutil.CreateSection(t, env.LabRepo, "CSE-B", fac.ID)
	bhanu := env.student(t, "Bhanu", "bhanu@nbkr.test", "21CS002", secA.ID)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", secA.ID)
	chitra := env.student(t, "Chitra", "chitra@nbkr.test", "21CS003", secB.ID)

	path := func(search, section, ordering string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if section != "" {
			v.Add("section", section)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/students?" + v.Encode()
	}
	token := getToken(t, env, fac)

	runTests(t, env, []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "faculty required", path: "/v1/students", token: getToken(t, env, anil),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "all", path: "/v1/students", token: token, wantData: marchallList(t, bhanu, anil, chitra)},
		{name: "section", path: path("", secA.ID, ""), token: token, wantData: marchallList(t, bhanu, anil)},
		{name: "search by name", path: path("ANI", "", ""), token: token, wantData: marchallList(t, anil)},
		{name: "search by roll number", path: path("21cs003", "", ""), token: token, wantData: marchallList(t, chitra)},
		{name: "search (unknown)", path: path("zed", "", ""), token: token, wantData: marchallList(t)},
		{name: "order by roll_number", path: path("", "", "roll_number"), token: token, wantData: marchallList(t, anil, bhanu, chitra)},
		{name: "order by -name", path: path("", "", "-name"), token: token, wantData: marchallList(t, chitra, bhanu, anil)},
		{name: "order by section,-roll_number", path: path("", "", "section,-roll_number"), token: token, wantData: func() []byte {
			if secA.ID < secB.ID {
				return marchallList(t, bhanu, anil, chitra)
			}
			return marchallList(t, chitra, bhanu, anil)
		}()},
		{name: "unknown ordering is ignored", path: path("", "", "lol"), token: token, wantData: marchallList(t, bhanu, anil, chitra)},
		{name: "filtering & ordering", path: path("", secA.ID, "name"), token: token, wantData: marchallList(t, anil, bhanu)},
	})
}

func Test_studentApi_enroll(t *testing.T) {
	env := setup(t)
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	sec := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	env.student(t, "Anil", "anil@nbkr.test", "21CS001", sec.ID)
	token := getToken(t, env, fac)

	required := "this field is required"
	runTests(t, env, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/students", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": required, "roll_number": required, "email": required, "section_id": required}),
		},
		{
			name: "unknown section", method: http.MethodPost, path: "/v1/students", token: token,
			body:     marchallObj(t, user.NewStudent{Name: "Ravi", RollNumber: "21CS009", Email: "ravi@nbkr.test", SectionID: "sec-nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"section_id": "unknown section"}),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/students", token: token,
			body:     marchallObj(t, user.NewStudent{Name: "Ravi", RollNumber: "21CS009", Email: "ANIL@nbkr.test", SectionID: sec.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "enrolled", method: http.MethodPost, path: "/v1/students", token: token,
			body:     marchallObj(t, user.NewStudent{Name: " Ravi Kumar ", RollNumber: "21CS009", Email: "Ravi@nbkr.test", SectionID: sec.ID}),
			wantCode: http.StatusCreated,
		},
	})

	ctx := context.Background()
	usr, err := env.UserSvc.GetByEmail(ctx, "ravi@nbkr.test")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", usr.Name)
	assert.Equal(t, "21CS009", usr.RollNumber())
	assert.Equal(t, sec.ID, usr.SectionID())
	assert.True(t, usr.IsFirstLogin)
	assert.Len(t, env.Mailer.SentMessages(), 1, "welcome email")

	_, err = env.UserSvc.Authenticate(ctx, "ravi@nbkr.test", testutil.DefaultStudentPassword)
	assert.NoError(t, err, "default password")
}

func Test_studentApi_retrieveUpdate(t *testing.T) {
	env := setup(t)
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	secA := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	secB := testutil.CreateSection(t, env.LabRepo, "CSE-B", fac.ID)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", secA.ID)
	token := getToken(t, env, fac)

	runTests(t, env, []httpTest{
		{name: "retrieve", path: "/v1/students/" + anil.ID, token: token, wantData: marchallObj(t, anil)},
		{name: "retrieve unknown", path: "/v1/students/stu-nope", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("student", "stu-nope"))},
		{name: "faculty is not a student", path: "/v1/students/" + fac.ID, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("student", fac.ID))},
		{
			name: "update to unknown section", method: http.MethodPut, path: "/v1/students/" + anil.ID, token: token,
			body:     marchallObj(t, user.UpdateStudent{SectionID: "sec-nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"section_id": "unknown section"}),
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/students/" + anil.ID, token: token,
			body: marchallObj(t, user.UpdateStudent{Name: "Anil Kumar", SectionID: secB.ID}),
		},
	})

	usr, err := env.UserSvc.GetByID(context.Background(), anil.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anil Kumar", usr.Name)
	assert.Equal(t, secB.ID, usr.SectionID())
	assert.Equal(t, anil.Email, usr.Email, "empty fields are kept")
}

func Test_studentApi_delete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	sec := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	exp := testutil.CreateExperiment(t, env.LabRepo, "Static routing", fac.ID)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", sec.ID)
	bhanu := env.student(t, "Bhanu", "bhanu@nbkr.test", "21CS002", sec.ID)
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: anil.ID, ExperimentID: exp.ID, ExperimentCompleted: true})
	kept := testutil.UpsertStatus(t, env.LabRepo, lab.Status{StudentID: bhanu.ID, ExperimentID: exp.ID, PacketTracerCompleted: true})
	token := getToken(t, env, fac)

	// both students submit a PDF
	uploads := map[string]string{}
	for _, stu := range []user.User{anil, bhanu} {
		req, rec := newUploadRequest(t, "/v1/me/experiments/"+exp.ID+"/pdf", getToken(t, env, stu), "file", pdfContent)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		st, err := env.LabSvc.StatusFor(ctx, stu.ID, exp.ID)
		require.NoError(t, err)
		uploads[stu.ID] = filesvc.NameFromURL(st.PDFURL.String)
		require.NotEmpty(t, uploads[stu.ID])
	}

	runTests(t, env, []httpTest{
		{
			name: "faculty cannot be deleted here", method: http.MethodDelete, path: "/v1/students/" + fac.ID, token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("student", fac.ID)),
		},
		{name: "deleted", method: http.MethodDelete, path: "/v1/students/" + anil.ID, token: token, wantCode: http.StatusNoContent},
		{
			name: "already deleted", method: http.MethodDelete, path: "/v1/students/" + anil.ID, token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("student", anil.ID)),
		},
	})

	sts, err := env.LabSvc.QueryStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, sts, 1, "only the deleted student's statuses are gone")
	assert.Equal(t, kept.ID, sts[0].ID)

	gone, stays := uploads[anil.ID], uploads[bhanu.ID]
	_, err = os.Stat(filepath.Join(env.Conf.Lab.UploadDir, gone))
	assert.True(t, os.IsNotExist(err), "the deleted student's upload is removed")
	_, err = os.Stat(filepath.Join(env.Conf.Lab.UploadDir, stays))
	assert.NoError(t, err, "other uploads are kept")

	runTests(t, env, []httpTest{
		{name: "upload no longer served", path: "/v1/files/" + gone, token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("file", gone))},
		{name: "other upload still served", path: "/v1/files/" + stays, token: token, wantCode: http.StatusOK},
	})
}

func Test_studentApi_updateStatus(t *testing.T) {
	env := setup(t)
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	sec := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	exp := testutil.CreateExperiment(t, env.LabRepo, "Static routing", fac.ID)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", sec.ID)
	token := getToken(t, env, fac)
	path := fmt.Sprintf("/v1/students/%s/experiments/%s/status", anil.ID, exp.ID)

	runTests(t, env, []httpTest{
		{
			name: "nothing to update", method: http.MethodPut, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "nothing to update"}),
		},
		{
			name: "unknown experiment", method: http.MethodPut, token: token,
			path:     fmt.Sprintf("/v1/students/%s/experiments/exp-nope/status", anil.ID),
			body:     []byte(`{"experiment_completed": true}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("experiment", "exp-nope")),
		},
		{
			name: "updated", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"packet_tracer_completed": true, "faculty_remarks": "  neat topology "}`),
		},
		{
			name: "partial update keeps the rest", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"experiment_completed": true}`),
		},
	})

	st, err := env.LabSvc.StatusFor(context.Background(), anil.ID, exp.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.True(t, st.PacketTracerCompleted)
	assert.True(t, st.ExperimentCompleted)
	assert.Equal(t, null.StringFrom("neat topology"), st.FacultyRemarks)
	assert.False(t, st.PDFSubmitted)
}

func Test_studentApi_report(t *testing.T) {
	env := setup(t)
	fac := env.faculty(t, "Ada Lovelace", "ada@nbkr.test")
	sec := testutil.CreateSection(t, env.LabRepo, "CSE-A", fac.ID)
	exp1 := testutil.CreateExperiment(t, env.LabRepo, "Static routing", fac.ID)
	exp2 := testutil.CreateExperiment(t, env.LabRepo, "VLANs", fac.ID)
	testutil.CreateQuestion(t, env.LabRepo, exp1.ID, "What is a route?", 0)
	anil := env.student(t, "Anil", "anil@nbkr.test", "21CS001", sec.ID)
	testutil.UpsertStatus(t, env.LabRepo, lab.Status{
		StudentID: anil.ID, ExperimentID: exp1.ID, ExperimentCompleted: true,
		VivaCompleted: true, VivaScore: null.IntFrom(10),
	})
	token := getToken(t, env, fac)

	runTests(t, env, []httpTest{
		{name: "unknown student", path: "/v1/students/stu-nope/report", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, notFound("student", "stu-nope"))},
	})

	rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/students/" + anil.ID + "/report", token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rep stats.StudentReport
	unmarshal(t, rec, &rep)

	assert.Equal(t, anil.ID, rep.Student.ID)
	assert.Equal(t, 10, rep.TotalScore)
	assert.Equal(t, null.IntFrom(10), rep.AverageScore)
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, exp1.ID, rep.Rows[0].Experiment.ID)
	assert.Equal(t, 10, rep.Rows[0].MaxScore)
	assert.Equal(t, stats.BandGood, rep.Rows[0].Band)
	assert.Equal(t, exp2.ID, rep.Rows[1].Experiment.ID)
	assert.False(t, rep.Rows[1].Status.VivaCompleted)
}
