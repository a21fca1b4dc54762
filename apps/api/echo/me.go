package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/services/files"
)

const uploadField = "file"

type meApi struct {
	lab    *lab.Service
	snap   *snapshot.Snapshot
	files  *filesvc.DiskStore
	logger core.Logger
}

// registerMeAPI registers the endpoints a student uses on their own progress.
func registerMeAPI(g *echo.Group, deps *Deps) {
	api := meApi{
		lab:    deps.LabSvc,
		snap:   deps.Snapshot,
		files:  deps.Files,
		logger: deps.Logger,
	}

	g.GET("/progress", api.progress)
	g.POST("/experiments/:id/pdf", api.submitPDF)
	g.POST("/experiments/:id/viva", api.submitViva)
}

func (api *meApi) progress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err := api.snap.Refresh(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "refreshing snapshot")
	}
	return ctx.JSON(http.StatusOK, stats.Report(api.snap.Collections(), usr))
}

func (api *meApi) submitPDF(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()

	exp, err := api.lab.GetExperiment(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding experiment")
	}

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "this field is required"})
		}
		return errors.Wrap(err, "reading multipart form")
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	name, url, err := api.files.SavePDF(src)
	if err != nil {
		return errors.Wrap(err, "saving upload")
	}

	// the previous upload, if any, is replaced
	prev, err := api.lab.StatusFor(rctx, usr.ID, exp.ID)
	if err != nil {
		api.discard(name)
		return errors.Wrap(err, "finding status")
	}
	st, err := api.lab.SubmitPDF(rctx, usr.ID, exp.ID, url)
	if err != nil {
		api.discard(name)
		return errors.Wrap(err, "submitting pdf")
	}
	if old := filesvc.NameFromURL(prev.PDFURL.String); old != "" && old != name {
		api.discard(old)
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *meApi) discard(name string) {
	if err := api.files.Remove(name); err != nil {
		api.logger.Warn("removing upload", err, map[string]interface{}{"file": name})
	}
}

func (api *meApi) submitViva(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data lab.VivaSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VivaSubmission")
	}
	st, err := api.lab.SubmitViva(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting viva")
	}
	return ctx.JSON(http.StatusOK, st)
}
