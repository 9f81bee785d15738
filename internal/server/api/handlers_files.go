package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/filehost/internal/common"
	"github.com/dmitrijs2005/filehost/internal/server/storage"
	"github.com/labstack/echo/v4"
)

type renameRequest struct {
	Filename *string `json:"filename"`
}

// HandleUpload handles POST /api/files.
// Accepts a multipart form with a "file" field.
func (h *Handler) HandleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return mapServiceError(c, fmt.Errorf("%w: no file provided", common.ErrValidation))
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error(c.Request().Context(), "open multipart file", "error", err)
		return mapServiceError(c, err)
	}
	defer src.Close()

	view, err := h.files.Upload(
		c.Request().Context(),
		currentUser(c).ID,
		fileHeader.Filename,
		fileHeader.Header.Get(echo.HeaderContentType),
		fileHeader.Size,
		src,
	)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "File uploaded successfully",
		"file":    view,
	})
}

// HandleList handles GET /api/files?page=&size=.
func (h *Handler) HandleList(c echo.Context) error {
	page, err := h.files.List(c.Request().Context(), currentUser(c).ID, queryInt(c, "page"), queryInt(c, "size"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// HandleGet handles GET /api/files/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	view, err := h.files.Get(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"file": view})
}

// HandleDownload handles GET /api/files/:id/download. Local files are
// streamed as an attachment; remote files redirect to a presigned URL.
func (h *Handler) HandleDownload(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	dl, err := h.files.Download(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return mapServiceError(c, err)
	}

	switch plan := dl.Plan.(type) {
	case storage.RedirectURL:
		return c.Redirect(http.StatusFound, plan.URL)
	case storage.DirectBytes:
		defer plan.Body.Close()

		header := c.Response().Header()
		header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": dl.File.Filename}))
		if plan.Size >= 0 {
			header.Set(echo.HeaderContentLength, strconv.FormatInt(plan.Size, 10))
		}
		mimeType := dl.File.MimeType
		if mimeType == "" {
			mimeType = common.DefaultMimeType
		}
		header.Set(echo.HeaderContentType, mimeType)
		c.Response().WriteHeader(http.StatusOK)

		if _, err := io.Copy(c.Response(), plan.Body); err != nil {
			h.logger.Warn(c.Request().Context(), "download interrupted", "file_id", id, "error", err)
		}
		return nil
	default:
		return mapServiceError(c, common.ErrInternal)
	}
}

// HandleRename handles PATCH /api/files/:id with {"filename": "..."}.
func (h *Handler) HandleRename(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	var req renameRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(c, fmt.Errorf("%w: invalid request body", common.ErrValidation))
	}
	if req.Filename == nil {
		// Lookup errors take precedence over the missing field.
		if _, err := h.files.Get(c.Request().Context(), currentUser(c).ID, id); err != nil {
			return mapServiceError(c, err)
		}
		return mapServiceError(c, fmt.Errorf("%w: new filename is required", common.ErrValidation))
	}

	view, err := h.files.Rename(c.Request().Context(), currentUser(c).ID, id, *req.Filename)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "File renamed successfully",
		"file":    view,
	})
}

// HandleDelete handles DELETE /api/files/:id.
func (h *Handler) HandleDelete(c echo.Context) error {
	id, err := fileID(c)
	if err != nil {
		return mapServiceError(c, err)
	}

	if err := h.files.SoftDelete(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "File deleted successfully"})
}
