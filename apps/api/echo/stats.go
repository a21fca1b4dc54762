package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/snapshot"
	"github.com/nbkrcse/labtrack/core/stats"
	"github.com/nbkrcse/labtrack/services/report"
)

type statsApi struct {
	lab  *lab.Service
	snap *snapshot.Snapshot
}

func registerStatsAPI(g *echo.Group, deps *Deps) {
	api := statsApi{lab: deps.LabSvc, snap: deps.Snapshot}

	g.GET("/dashboard", api.dashboard)
	g.GET("/sections", api.sections)
	g.GET("/export", api.export)
}

// refresh reloads the snapshot and checks the optional `section` query param.
func (api *statsApi) refresh(ctx echo.Context) (sectionID string, err error) {
	rctx := ctx.Request().Context()
	sectionID = core.CleanString(ctx.QueryParam("section"))
	if sectionID != "" {
		if _, err := api.lab.GetSection(rctx, sectionID); err != nil {
			return "", errors.Wrap(err, "finding section")
		}
	}
	if err := api.snap.Refresh(rctx); err != nil {
		return "", errors.Wrap(err, "refreshing snapshot")
	}
	return sectionID, nil
}

func (api *statsApi) dashboard(ctx echo.Context) error {
	sectionID, err := api.refresh(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats.Dashboard(api.snap.Collections(), sectionID))
}

func (api *statsApi) sections(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if _, err := api.refresh(ctx); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats.SectionSummaries(api.snap.Collections(), usr.ID))
}

func (api *statsApi) export(ctx echo.Context) error {
	sectionID, err := api.refresh(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := reportsvc.WriteProgressXLSX(&buf, reportsvc.ProgressRows(api.snap.Collections(), sectionID)); err != nil {
		return errors.Wrap(err, "writing progress report")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exportFilename(sectionID)))
	return ctx.Blob(http.StatusOK, reportsvc.ContentType, buf.Bytes())
}

func exportFilename(sectionID string) string {
	if sectionID == "" {
		return "progress.xlsx"
	}
	return "progress-" + sectionID + ".xlsx"
}
