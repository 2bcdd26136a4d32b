package result

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	lab := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleLabDoctor))
	lab.POST("/lab-test-result", h.RecordLab)

	imaging := api.Group("", auth.RequireRole(auth.RoleDiagnosticDoctor))
	imaging.POST("/imaging/xray-result", h.RecordImaging)

	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleDiagnosticDoctor, auth.RoleLabDoctor))
	read.GET("/indication-ticket/:id/result", h.ForIndication)
	read.GET("/imaging/file", h.File)
}

func (h *Handler) RecordLab(c echo.Context) error {
	var req LabResultRequest
	if err := validation.Bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	res, err := h.svc.RecordLab(ctx, auth.UserIDFromContext(ctx), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

// RecordImaging accepts JSON with stored file keys, or multipart/form-data
// whose "files" parts are uploaded.
func (h *Handler) RecordImaging(c echo.Context) error {
	var (
		req     ImagingResultRequest
		uploads []Upload
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperr.Validation("invalid multipart body: %v", err)
		}
		req = ImagingResultRequest{
			IndicationID: formValue(form, "indication_id"),
			Conclusion:   formValue(form, "conclusion"),
			Result:       formValue(form, "result"),
			Description:  formValue(form, "description"),
			Files:        form.Value["files"],
		}
		for _, fh := range form.File["files"] {
			uploads = append(uploads, fileUpload(fh))
		}
	} else if err := validation.Bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	res, err := h.svc.RecordImaging(ctx, auth.UserIDFromContext(ctx), req, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ForIndication(c echo.Context) error {
	out, err := h.svc.ForIndication(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) File(c echo.Context) error {
	rc, meta, err := h.svc.OpenFile(c.Request().Context(), c.QueryParam("key"))
	if err != nil {
		return err
	}
	defer rc.Close()
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+meta.FileName+`"`)
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func fileUpload(fh *multipart.FileHeader) Upload {
	return Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}
