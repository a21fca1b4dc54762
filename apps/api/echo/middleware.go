package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/nbkrcse/labtrack/core/user"
)

// loadUserMiddleware loads the user named by the token claims into the context.
// Tokens of deleted users are rejected.
func loadUserMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr, err := loadContextUser(ctx.Request().Context(), claims, svc)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// passwordChangedMiddleware blocks students who still have to replace their default password.
func passwordChangedMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		if usr.IsStudent() && usr.IsFirstLogin {
			return errPasswordChangeFirst
		}
		return next(ctx)
	}
}

func roleMiddleware(role user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.Role != role {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

var (
	facultyMiddleware = roleMiddleware(user.RoleFaculty)
	studentMiddleware = roleMiddleware(user.RoleStudent)
)
