package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/core/user"
	"github.com/nbkrcse/labtrack/services/files"
)

type studentApi struct {
	users  *user.Service
	lab    *lab.Service
	snap   *snapshot.Snapshot
	files  *filesvc.DiskStore
	logger core.Logger
}

// registerStudentAPI registers the faculty-side student management endpoints.
func registerStudentAPI(g *echo.Group, deps *Deps) {
	api := studentApi{
		users:  deps.UserSvc,
		lab:    deps.LabSvc,
		snap:   deps.Snapshot,
		files:  deps.Files,
		logger: deps.Logger,
	}

	g.GET("", api.query)
	g.POST("", api.enroll)
	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update)
	g.DELETE("/:id", api.delete)
	g.GET("/:id/report", api.report)
	g.PUT("/:id/experiments/:expId/status", api.updateStatus)
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search:    ctx.QueryParam("search"),
		SectionID: ctx.QueryParam("section"),
		Role:      user.RoleStudent,
	}
	var ord Ordering
	ord.Bind(ctx)

	students, err := api.users.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	ord.SortStudents(students)
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	rctx := ctx.Request().Context()
	if err := api.checkSection(rctx, data.SectionID); err != nil {
		return err
	}

	usr, err := api.users.EnrollStudent(rctx, data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	usr, err := api.getStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *studentApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := api.getStudent(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data user.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := api.checkSection(rctx, data.SectionID); err != nil {
		return err
	}
	usr, err = api.users.UpdateStudent(rctx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *studentApi) delete(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := api.getStudent(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	sts, err := api.lab.StatusesForStudent(rctx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "finding statuses")
	}
	if err := api.users.DeleteStudent(rctx, usr.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}

	// the status rows are gone with the student, their uploads go too
	for _, st := range sts {
		if name := filesvc.NameFromURL(st.PDFURL.String); name != "" {
			if err := api.files.Remove(name); err != nil {
				api.logger.Warn("removing upload", err, map[string]interface{}{"file": name, "student": usr.ID})
			}
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) report(ctx echo.Context) error {
	if err := api.snap.Refresh(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "refreshing snapshot")
	}
	stu, ok := api.snap.StudentByID(ctx.Param("id"))
	if !ok {
		return core.NewNotFoundError("student", ctx.Param("id"))
	}
	return ctx.JSON(http.StatusOK, stats.Report(api.snap.Collections(), stu))
}

func (api *studentApi) updateStatus(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := api.getStudent(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data lab.StatusUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if data.IsEmpty() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "nothing to update"})
	}

	st, err := api.lab.ApplyStatusUpdate(rctx, usr.ID, ctx.Param("expId"), data)
	if err != nil {
		return errors.Wrap(err, "updating status")
	}
	return ctx.JSON(http.StatusOK, st)
}

// getStudent hides faculty accounts behind a not found error.
func (api *studentApi) getStudent(ctx context.Context, id string) (user.User, error) {
	usr, err := api.users.GetByID(ctx, id)
	if err != nil && !core.IsNotFound(err) {
		return user.User{}, errors.Wrap(err, "finding student")
	}
	if err != nil || !usr.IsStudent() {
		return user.User{}, core.NewNotFoundError("student", id)
	}
	return usr, nil
}

// checkSection rejects references to unknown sections. An empty ID is left to the validator.
func (api *studentApi) checkSection(ctx context.Context, id string) error {
	id = core.CleanString(id)
	if id == "" {
		return nil
	}
	if _, err := api.lab.GetSection(ctx, id); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "section_id", Error: "unknown section"})
		}
		return errors.Wrap(err, "finding section")
	}
	return nil
}
