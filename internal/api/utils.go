package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/auth"
	"evalgo.org/mdm/internal/catalog"
)

// bind decodes the request body into dst and runs the struct validator.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Validation("Geçersiz istek gövdesi").WithInternal(err)
	}
	return c.Validate(dst)
}

// queryBool parses an optional boolean query parameter.
func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Validationf("%s parametresi true veya false olmalı", name).
			WithFields(map[string]string{name: "geçersiz değer"})
	}
	return &v, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperror.Validationf("%s parametresi pozitif bir sayı olmalı", name).
			WithFields(map[string]string{name: "geçersiz değer"})
	}
	return v, nil
}

func reqCtx(c echo.Context) context.Context {
	return c.Request().Context()
}

func actor(c echo.Context) string {
	return auth.UserID(c)
}

func respondData(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, DataResponse{Success: true, Data: data})
}

// respondSynced writes data and lists the category/family sync steps that
// failed after the primary write succeeded.
func respondSynced(c echo.Context, status int, data interface{}, report *catalog.SyncReport) error {
	resp := DataResponse{Success: true, Data: data}
	if !report.OK() {
		resp.Warnings = report.Failures
		resp.Message = "Kayıt kaydedildi ancak bazı bağlantılar güncellenemedi"
	}
	return c.JSON(status, resp)
}

func respondDeleted(c echo.Context, id string) error {
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Kayıt silindi", ID: id})
}
