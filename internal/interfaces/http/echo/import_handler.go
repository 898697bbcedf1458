package echo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

const maxUploadBytes = 10 << 20

type ImportHandler struct {
	startImport app.StartImport
	engine      app.ImportEngine
}

type startImportRequest struct {
	SourcePath string          `json:"source_path"`
	Options    json.RawMessage `json:"options,omitempty"`
}

type retryRequest struct {
	Errors []*domain.RecoverableError `json:"errors"`
	Fixes  []app.Fix                  `json:"fixes"`
}

type suggestFixesRequest struct {
	Errors []*domain.RecoverableError `json:"errors"`
}

func NewImportHandler(startImport app.StartImport, engine app.ImportEngine) *ImportHandler {
	return &ImportHandler{startImport: startImport, engine: engine}
}

func (h *ImportHandler) StartImport(c echo.Context) error {
	var req startImportRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
	}
	opts, err := decodeOptions(req.Options)
	if err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}

	ictx := importContext(c)
	out, err := h.startImport.Execute(c.Request().Context(), app.StartImportInput{
		TenantID:   ictx.TenantID,
		TenantCode: ictx.TenantCode,
		ActorID:    ictx.ActorID,
		SourcePath: req.SourcePath,
		Options:    opts,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingTenant):
			return missingTenant(c)
		case errors.Is(err, app.ErrInvalidImportSource):
			return fail(c, http.StatusBadRequest, "invalid_source", "source_path must be a .csv, .txt or .xlsx file")
		}
		return fail(c, http.StatusInternalServerError, "internal_error", "failed to enqueue import job")
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *ImportHandler) Preview(c echo.Context) error {
	file, opts, err := readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}

	result, err := h.engine.Preview(c.Request().Context(), importContext(c), file, opts)
	if err != nil {
		return h.executionError(c, nil, err)
	}
	if len(result.ParseErrors) > 0 {
		return failWith(c, http.StatusUnprocessableEntity, "file_rejected", "import file rejected", result, result.ParseErrors)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: result})
}

func (h *ImportHandler) Execute(c echo.Context) error {
	file, opts, err := readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}

	result, err := h.engine.Execute(c.Request().Context(), importContext(c), file, opts)
	if err != nil {
		return h.executionError(c, result, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: result})
}

func (h *ImportHandler) ExecuteBatched(c echo.Context) error {
	file, opts, err := readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}

	result, err := h.engine.ExecuteBatched(c.Request().Context(), importContext(c), file, opts)
	if err != nil {
		return h.executionError(c, result, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: result})
}

// Retry expects the original upload plus a "retry" form field holding the prior errors and fixes.
func (h *ImportHandler) Retry(c echo.Context) error {
	file, opts, err := readUpload(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", err.Error())
	}
	var req retryRequest
	if err := json.Unmarshal([]byte(c.FormValue("retry")), &req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "retry must be a JSON object with errors and fixes")
	}

	result, err := h.engine.RetryFailedRows(c.Request().Context(), importContext(c), file, req.Errors, req.Fixes, opts)
	if err != nil {
		return h.executionError(c, result, err)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: result})
}

func (h *ImportHandler) SuggestFixes(c echo.Context) error {
	var req suggestFixesRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
	}
	fixes := app.BulkApplyCommonFixes(req.Errors)
	if fixes == nil {
		fixes = []app.Fix{}
	}
	return c.JSON(http.StatusOK, apiResponse{Data: fixes})
}

func (h *ImportHandler) Rollback(c echo.Context) error {
	result, err := h.engine.Rollback(c.Request().Context(), importContext(c), c.Param("id"))
	if err != nil {
		var rejection *app.RollbackRejection
		switch {
		case errors.Is(err, app.ErrMissingTenant):
			return missingTenant(c)
		case errors.As(err, &rejection):
			return failWith(c, rejectionStatus(rejection.Reason), string(rejection.Reason), rejection.Error(), nil, rejection)
		}
		return fail(c, http.StatusInternalServerError, "internal_error", "rollback failed")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: result})
}

func (h *ImportHandler) History(c echo.Context) error {
	ictx := importContext(c)
	if ictx.TenantID == "" {
		return missingTenant(c)
	}
	entries, err := h.engine.GetHistory(c.Request().Context(), ictx.TenantID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal_error", "failed to load import history")
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return c.JSON(http.StatusOK, apiResponse{Data: entries})
}

func (h *ImportHandler) Statistics(c echo.Context) error {
	ictx := importContext(c)
	if ictx.TenantID == "" {
		return missingTenant(c)
	}
	stats, err := h.engine.GetStatistics(c.Request().Context(), ictx.TenantID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "internal_error", "failed to load import statistics")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: stats})
}

// executionError maps engine failures; data carries the partial result when there is one.
func (h *ImportHandler) executionError(c echo.Context, data any, err error) error {
	var (
		rejected *app.FileRejectedError
		fixes    *app.FixValidationError
	)
	switch {
	case errors.Is(err, app.ErrMissingTenant):
		return missingTenant(c)
	case errors.As(err, &rejected):
		return failWith(c, http.StatusUnprocessableEntity, "file_rejected", "import file rejected", nil, rejected.ParseErrors)
	case errors.Is(err, app.ErrMissingHeader):
		return fail(c, http.StatusUnprocessableEntity, "missing_header", err.Error())
	case errors.As(err, &fixes):
		return failWith(c, http.StatusUnprocessableEntity, "invalid_fixes", "fixes are not sufficient for retry", nil, fixes.Problems)
	case errors.Is(err, app.ErrValidationFailed):
		return failWith(c, http.StatusUnprocessableEntity, "validation_failed", "rows failed validation", data, nil)
	case errors.Is(err, app.ErrExecutionAborted):
		return failWith(c, http.StatusConflict, "execution_aborted", err.Error(), data, nil)
	}
	return failWith(c, http.StatusInternalServerError, "internal_error", "import failed", data, nil)
}

func rejectionStatus(reason app.RollbackReason) int {
	switch reason {
	case app.RollbackNotFound:
		return http.StatusNotFound
	case app.RollbackWrongTenant:
		return http.StatusForbidden
	}
	return http.StatusConflict
}

// decodeOptions overlays the given JSON onto the default options, so omitted keys keep
// their defaults.
func decodeOptions(raw []byte) (domain.UpsertOptions, error) {
	opts := domain.DefaultUpsertOptions()
	if len(bytes.TrimSpace(raw)) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return domain.DefaultUpsertOptions(), fmt.Errorf("options must be a JSON object: %v", err)
	}
	return opts, nil
}

// readUpload takes the "file" multipart part and the optional "options" JSON field.
func readUpload(c echo.Context) (app.ImportFile, domain.UpsertOptions, error) {
	opts, err := decodeOptions([]byte(c.FormValue("options")))
	if err != nil {
		return app.ImportFile{}, opts, err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return app.ImportFile{}, opts, errors.New("file is required")
	}
	src, err := header.Open()
	if err != nil {
		return app.ImportFile{}, opts, fmt.Errorf("open upload: %v", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return app.ImportFile{}, opts, fmt.Errorf("read upload: %v", err)
	}
	if len(data) > maxUploadBytes {
		return app.ImportFile{}, opts, fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}
	return app.ImportFile{Name: header.Filename, Data: data}, opts, nil
}
