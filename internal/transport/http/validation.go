package httptransport

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// validateStruct 校验请求结构体，返回字段级错误明细
//
// 字段名取 json 标签风格（首字母小写），消息按校验标签生成。
// 校验通过返回 nil。
func validateStruct(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": MsgInvalidRequest}
	}

	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fieldName(fe)] = fieldMessage(fe)
	}
	return details
}

// validateUUIDParam 校验路径参数是否为合法 UUID
func validateUUIDParam(value, name string) map[string]string {
	if _, err := uuid.Parse(value); err != nil {
		return map[string]string{name: fmt.Sprintf("%s must be a valid uuid", name)}
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	field := fe.Field()
	if field == "" {
		return "request"
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid uuid"
	default:
		return fmt.Sprintf("failed validation on %s", fe.Tag())
	}
}
