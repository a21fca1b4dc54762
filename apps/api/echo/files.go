package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/services/files"
)

type fileApi struct {
	lab   *lab.Service
	files *filesvc.DiskStore
}

func registerFileAPI(g *echo.Group, deps *Deps) {
	api := fileApi{lab: deps.LabSvc, files: deps.Files}

	g.GET("/:name", api.retrieve)
}

// retrieve serves a submitted PDF to faculty, or to the student who submitted it.
func (api *fileApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	name := ctx.Param("name")

	if usr.IsStudent() {
		sts, err := api.lab.StatusesForStudent(ctx.Request().Context(), usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying statuses")
		}
		owned := false
		for _, st := range sts {
			if st.PDFURL.Valid && st.PDFURL.String == filesvc.URLPrefix+name {
				owned = true
				break
			}
		}
		if !owned {
			return core.NewNotFoundError("file", name)
		}
	}

	f, err := api.files.Open(name)
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer f.Close()

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", name))
	return ctx.Stream(http.StatusOK, "application/pdf", f)
}
