package common

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// RequireIDParam extracts a positive integer route parameter. Anything else
// is reported as 404, the same as an id that does not exist.
func RequireIDParam(c echo.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound("not found")
	}
	return id, nil
}
