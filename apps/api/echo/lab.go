package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
)

type labApi struct {
	svc *lab.Service
}

func registerLabAPI(g *echo.Group, deps *Deps) {
	api := labApi{svc: deps.LabSvc}

	sg := g.Group("/sections", facultyMiddleware)
	sg.GET("", api.querySections)
	sg.POST("", api.createSection)
	sg.PUT("/:id", api.updateSection)

	eg := g.Group("/experiments")
	eg.GET("", api.queryExperiments)
	eg.POST("", api.createExperiment, facultyMiddleware)
	eg.GET("/:id", api.retrieveExperiment)
	eg.PUT("/:id", api.updateExperiment, facultyMiddleware)
	eg.GET("/:id/questions", api.queryQuestions)
	eg.POST("/:id/questions", api.createQuestion, facultyMiddleware)
	eg.PUT("/:id/questions/:qid", api.updateQuestion, facultyMiddleware)
}

// Sections

func (api *labApi) querySections(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	secs, err := api.svc.SectionsForFaculty(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return ctx.JSON(http.StatusOK, secs)
}

func (api *labApi) createSection(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data lab.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	data.FacultyID = usr.ID

	sec, err := api.svc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *labApi) updateSection(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	sec, err := api.svc.GetSection(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding section")
	}
	if sec.FacultyID != usr.ID { // others' sections do not exist for this user
		return core.NewNotFoundError("section", sec.ID)
	}

	var data lab.UpdateSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	sec, err = api.svc.UpdateSection(rctx, sec.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

// Experiments

func (api *labApi) queryExperiments(ctx echo.Context) error {
	exps, err := api.svc.QueryExperiments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying experiments")
	}
	return ctx.JSON(http.StatusOK, exps)
}

func (api *labApi) retrieveExperiment(ctx echo.Context) error {
	exp, err := api.svc.GetExperiment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding experiment")
	}
	return ctx.JSON(http.StatusOK, exp)
}

func (api *labApi) createExperiment(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data lab.NewExperiment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExperiment")
	}
	data.FacultyID = usr.ID

	exp, err := api.svc.CreateExperiment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating experiment")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *labApi) updateExperiment(ctx echo.Context) error {
	var data lab.UpdateExperiment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExperiment")
	}
	exp, err := api.svc.UpdateExperiment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating experiment")
	}
	return ctx.JSON(http.StatusOK, exp)
}

// Viva questions

// studentQuestion is a viva question as shown to students: without its answer.
type studentQuestion struct {
	ID           string   `json:"id"`
	ExperimentID string   `json:"experiment_id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
}

func (api *labApi) queryQuestions(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	exp, err := api.svc.GetExperiment(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding experiment")
	}
	qs, err := api.svc.QuestionsForExperiment(rctx, exp.ID)
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if usr.IsFaculty() {
		return ctx.JSON(http.StatusOK, qs)
	}

	res := make([]studentQuestion, 0, len(qs))
	for _, q := range qs {
		res = append(res, studentQuestion{ID: q.ID, ExperimentID: q.ExperimentID, Question: q.Question, Options: q.Options})
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *labApi) createQuestion(ctx echo.Context) error {
	var data lab.NewVivaQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVivaQuestion")
	}
	data.ExperimentID = ctx.Param("id")

	q, err := api.svc.CreateVivaQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *labApi) updateQuestion(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	qs, err := api.svc.QuestionsForExperiment(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	found := false
	for _, q := range qs {
		if q.ID == ctx.Param("qid") {
			found = true
			break
		}
	}
	if !found {
		return core.NewNotFoundError("viva question", ctx.Param("qid"))
	}

	var data lab.UpdateVivaQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVivaQuestion")
	}
	q, err := api.svc.UpdateVivaQuestion(rctx, ctx.Param("qid"), data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, q)
}
