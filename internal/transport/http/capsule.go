package httptransport

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"timecapsule/backend/internal/domain"
	"timecapsule/backend/internal/service"
)

// createCapsuleRequest 创建胶囊的 JSON 请求体
type createCapsuleRequest struct {
	Title         string   `json:"title" validate:"required"`
	Content       string   `json:"content"`
	Visibility    string   `json:"visibility" validate:"omitempty,oneof=public private"`
	OpenDate      string   `json:"openDate"`
	ShowCountdown bool     `json:"showCountdown"`
	Collaborators []string `json:"collaborators"`
	Receivers     []string `json:"receivers"`
}

// editCapsuleRequest 编辑胶囊的 JSON 请求体，缺省字段不修改
type editCapsuleRequest struct {
	Title         *string  `json:"title"`
	Content       *string  `json:"content"`
	Visibility    *string  `json:"visibility" validate:"omitempty,oneof=public private"`
	OpenDate      *string  `json:"openDate"`
	ShowCountdown *bool    `json:"showCountdown"`
	Collaborators []string `json:"collaborators"`
	Receivers     []string `json:"receivers"`
}

// listParams 列表端点的查询参数绑定产物
type listParams struct {
	Mode string
	Skip int
	Take int
}

// CreateCapsule 创建胶囊
//
//	POST /v1/capsules
//
// 同时支持 application/json 与 multipart/form-data，后者可携带图片。
func (h *Handler) CreateCapsule() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Values: h.bindCreateValues,
		Auth:   authRequired,
	}, func(c *gin.Context, actor domain.Actor) {
		input := boundRequest(c).(service.CreateCapsuleInput)
		view, err := h.capsules.Create(actor, input)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		Created(c, view)
	})
}

// EditCapsule 编辑未封存的胶囊
//
//	PUT /v1/capsules/:id
//
// 与创建一致，multipart 请求可追加图片。
func (h *Handler) EditCapsule() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Params: []string{"id"},
		Values: h.bindEditValues,
		Auth:   authRequired,
	}, func(c *gin.Context, actor domain.Actor) {
		input := boundRequest(c).(service.EditCapsuleInput)
		view, err := h.capsules.Edit(c.Param("id"), actor, input)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		Success(c, view)
	})
}

// DeleteCapsule 删除胶囊
//
//	DELETE /v1/capsules/:id
func (h *Handler) DeleteCapsule() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Params: []string{"id"},
		Auth:   authRequired,
	}, func(c *gin.Context, actor domain.Actor) {
		if err := h.capsules.Delete(c.Param("id"), actor); err != nil {
			RespondError(c, h.log, err)
			return
		}
		NoContent(c)
	})
}

// GetCapsule 查看单个胶囊
//
//	GET /v1/capsules/:id
func (h *Handler) GetCapsule() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Params: []string{"id"},
		Auth:   authOptional,
	}, func(c *gin.Context, actor domain.Actor) {
		view, err := h.capsules.Get(c.Param("id"), actor)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		Success(c, view)
	})
}

// GetCapsuleImage 读取胶囊图片的原始内容
//
//	GET /v1/capsules/:id/images/:imageId
func (h *Handler) GetCapsuleImage() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Params: []string{"id", "imageId"},
		Auth:   authOptional,
	}, func(c *gin.Context, actor domain.Actor) {
		meta, data, err := h.capsules.GetImage(c.Param("id"), c.Param("imageId"), actor)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}

		contentType := meta.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Data(http.StatusOK, contentType, data)
	})
}

// ListUserCapsules 列出当前用户的胶囊
//
//	GET /v1/capsules/user/:id?type=draft|sent|received&skip=&take=
//
// 列表永远以当前登录用户为范围，路径中的 id 仅要求是合法 UUID。
func (h *Handler) ListUserCapsules() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Params: []string{"id"},
		Values: listValues("draft", "sent", "received"),
		Auth:   authRequired,
	}, func(c *gin.Context, actor domain.Actor) {
		params := boundRequest(c).(listParams)
		views, err := h.capsules.ListUser(actor, params.Mode, params.Skip, params.Take)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		Success(c, views)
	})
}

// ListPublicCapsules 列出公开胶囊
//
//	GET /v1/capsules/public?type=sealed|opened&skip=&take=
func (h *Handler) ListPublicCapsules() gin.HandlerFunc {
	return h.endpoint(endpointOptions{
		Values: listValues("sealed", "opened"),
		Auth:   authNone,
	}, func(c *gin.Context, _ domain.Actor) {
		params := boundRequest(c).(listParams)
		views, err := h.capsules.ListPublic(params.Mode, params.Skip, params.Take)
		if err != nil {
			RespondError(c, h.log, err)
			return
		}
		Success(c, views)
	})
}

// bindCreateValues 按内容类型绑定创建请求。
func (h *Handler) bindCreateValues(c *gin.Context) error {
	var input service.CreateCapsuleInput
	var err error
	if isMultipart(c) {
		input, err = bindCreateMultipart(c)
	} else {
		input, err = bindCreateJSON(c)
	}
	if err != nil {
		return err
	}
	c.Set(contextRequest, input)
	return nil
}

// bindEditValues 按内容类型绑定编辑请求。
func (h *Handler) bindEditValues(c *gin.Context) error {
	var input service.EditCapsuleInput
	var err error
	if isMultipart(c) {
		input, err = bindEditMultipart(c)
	} else {
		input, err = bindEditJSON(c)
	}
	if err != nil {
		return err
	}
	c.Set(contextRequest, input)
	return nil
}

func bindCreateJSON(c *gin.Context) (service.CreateCapsuleInput, error) {
	var req createCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return service.CreateCapsuleInput{}, domain.NewValidationError(map[string]string{"request": MsgInvalidJSON})
	}
	if details := validateStruct(&req); details != nil {
		return service.CreateCapsuleInput{}, domain.NewValidationError(details)
	}

	openDate, err := parseOpenDate(req.OpenDate)
	if err != nil {
		return service.CreateCapsuleInput{}, err
	}

	return service.CreateCapsuleInput{
		Title:         req.Title,
		Content:       req.Content,
		Visibility:    domain.Visibility(req.Visibility),
		OpenDate:      openDate,
		ShowCountdown: req.ShowCountdown,
		Collaborators: req.Collaborators,
		Receivers:     req.Receivers,
	}, nil
}

func bindCreateMultipart(c *gin.Context) (service.CreateCapsuleInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.CreateCapsuleInput{}, domain.NewValidationError(map[string]string{"request": MsgInvalidRequest})
	}

	input := service.CreateCapsuleInput{
		Title:         formValue(form, "title"),
		Content:       formValue(form, "content"),
		Visibility:    domain.Visibility(formValue(form, "visibility")),
		ShowCountdown: formValue(form, "showCountdown") == "true",
		Collaborators: formList(form, "collaborators"),
		Receivers:     formList(form, "receivers"),
	}
	if input.Title == "" {
		return service.CreateCapsuleInput{}, domain.NewValidationError(map[string]string{"title": "this field is required"})
	}

	input.OpenDate, err = parseOpenDate(formValue(form, "openDate"))
	if err != nil {
		return service.CreateCapsuleInput{}, err
	}

	input.Images, err = formImages(form)
	if err != nil {
		return service.CreateCapsuleInput{}, err
	}
	return input, nil
}

func bindEditJSON(c *gin.Context) (service.EditCapsuleInput, error) {
	var req editCapsuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return service.EditCapsuleInput{}, domain.NewValidationError(map[string]string{"request": MsgInvalidJSON})
	}
	if details := validateStruct(&req); details != nil {
		return service.EditCapsuleInput{}, domain.NewValidationError(details)
	}

	input := service.EditCapsuleInput{
		Title:         req.Title,
		Content:       req.Content,
		ShowCountdown: req.ShowCountdown,
		Collaborators: req.Collaborators,
		Receivers:     req.Receivers,
	}
	if req.Visibility != nil {
		visibility := domain.Visibility(*req.Visibility)
		input.Visibility = &visibility
	}
	if req.OpenDate != nil {
		openDate, err := parseOpenDate(*req.OpenDate)
		if err != nil {
			return service.EditCapsuleInput{}, err
		}
		input.OpenDate = openDate
	}
	return input, nil
}

func bindEditMultipart(c *gin.Context) (service.EditCapsuleInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.EditCapsuleInput{}, domain.NewValidationError(map[string]string{"request": MsgInvalidRequest})
	}

	var input service.EditCapsuleInput
	if v, ok := formOptional(form, "title"); ok {
		input.Title = &v
	}
	if v, ok := formOptional(form, "content"); ok {
		input.Content = &v
	}
	if v, ok := formOptional(form, "visibility"); ok {
		visibility := domain.Visibility(v)
		input.Visibility = &visibility
	}
	if v, ok := formOptional(form, "showCountdown"); ok {
		show := v == "true"
		input.ShowCountdown = &show
	}
	if v, ok := formOptional(form, "openDate"); ok {
		input.OpenDate, err = parseOpenDate(v)
		if err != nil {
			return service.EditCapsuleInput{}, err
		}
	}
	if _, ok := form.Value["collaborators"]; ok {
		input.Collaborators = formList(form, "collaborators")
	}
	if _, ok := form.Value["receivers"]; ok {
		input.Receivers = formList(form, "receivers")
	}

	input.Images, err = formImages(form)
	if err != nil {
		return service.EditCapsuleInput{}, err
	}
	return input, nil
}

// listValues 绑定列表端点的查询参数。
//
// skip/take 提供时必须为正整数，type 必须落在允许的取值内。
func listValues(modes ...string) func(c *gin.Context) error {
	return func(c *gin.Context) error {
		skip, take, details := parsePagination(c)
		if details != nil {
			return domain.NewValidationError(details)
		}

		mode := c.Query("type")
		if mode != "" && !slices.Contains(modes, mode) {
			return domain.NewValidationError(map[string]string{
				"type": "type must be one of " + strings.Join(modes, ", "),
			})
		}

		c.Set(contextRequest, listParams{Mode: mode, Skip: skip, Take: take})
		return nil
	}
}

// isMultipart 判断请求体是否为 multipart 表单。
func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formValue 取表单字段的首个值，不存在返回空串。
func formValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// formOptional 取表单字段的首个值，第二个返回值标记字段是否出现。
func formOptional(form *multipart.Form, name string) (string, bool) {
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// formList 取表单里的列表字段，同时支持重复键与逗号分隔。
func formList(form *multipart.Form, name string) []string {
	var out []string
	for _, value := range form.Value[name] {
		for _, item := range strings.Split(value, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// formImages 读取表单携带的图片文件。
func formImages(form *multipart.Form) ([]service.ImageUpload, error) {
	files := form.File["images"]
	if len(files) == 0 {
		return nil, nil
	}

	uploads := make([]service.ImageUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, domain.NewValidationError(map[string]string{"images": "failed to read uploaded image"})
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, domain.NewValidationError(map[string]string{"images": "failed to read uploaded image"})
		}

		uploads = append(uploads, service.ImageUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

// parseOpenDate 解析 RFC3339 格式的开启时间，空串表示未提供。
func parseOpenDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewValidationError(map[string]string{
			"openDate": "openDate must be a RFC3339 timestamp",
		})
	}
	return &t, nil
}

// parsePagination 解析 skip/take 查询参数，缺省值交给业务层补齐。
func parsePagination(c *gin.Context) (skip, take int, details map[string]string) {
	skip, details = parsePositive(c, "skip")
	if details != nil {
		return 0, 0, details
	}
	take, details = parsePositive(c, "take")
	if details != nil {
		return 0, 0, details
	}
	return skip, take, nil
}

// parsePositive 解析一个正整数查询参数，提供时必须大于等于 1。
func parsePositive(c *gin.Context, name string) (int, map[string]string) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, map[string]string{name: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return v, nil
}
