package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mentor/internal/model"
	"mentor/internal/service"
)

// multipart 头部等额外开销
const multipartOverhead = 1 << 20

// FileHandler 文件上传与分析
type FileHandler struct {
	uploads *service.UploadService
}

// NewFileHandler 创建文件处理器
func NewFileHandler(uploads *service.UploadService) *FileHandler {
	return &FileHandler{uploads: uploads}
}

// Upload 上传文件并提取文本
// @Summary      上传文件
// @Description  匿名上限 2MB，注册用户 10MB；注册用户的文件会被保存
// @Tags         文件
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "上传的文件"
// @Success      200   {object}  model.UploadResponse
// @Failure      400   {object}  model.ErrorResponse
// @Failure      413   {object}  model.ErrorResponse
// @Failure      422   {object}  model.ErrorResponse
// @Failure      503   {object}  model.ErrorResponse
// @Router       /api/v1/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	id := identity(c)
	limit := h.uploads.MaxBytes(id)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, service.ErrPayloadTooLarge)
			return
		}
		badRequest(c, err)
		return
	}
	if file.Size > limit {
		writeError(c, service.ErrPayloadTooLarge)
		return
	}

	f, err := file.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	resp, err := h.uploads.Upload(c.Request.Context(), id, file.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Analyze 按文件类型分析文件内容
// @Summary      分析文件内容
// @Tags         文件
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.AnalyzeFileRequest  true  "文件内容与问题"
// @Success      200      {object}  model.AnalyzeFileResponse
// @Failure      400      {object}  model.ErrorResponse
// @Failure      413      {object}  model.ErrorResponse
// @Failure      429      {object}  model.ErrorResponse
// @Failure      503      {object}  model.ErrorResponse
// @Router       /api/v1/files/analyze [post]
func (h *FileHandler) Analyze(c *gin.Context) {
	id := identity(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes(id)+multipartOverhead)

	var req model.AnalyzeFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, service.ErrPayloadTooLarge)
			return
		}
		badRequest(c, err)
		return
	}

	resp, err := h.uploads.Analyze(c.Request.Context(), id, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
