package forms

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func init() {
	// 必填字段拒绝纯空白输入
	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// 字段级错误文案，按 结构体.字段 索引
var fieldMessages = map[string]string{
	"PostForm.Text":    "文本不能为空",
	"PostForm.Group":   "群组编号格式不正确",
	"CommentForm.Text": "评论内容不能为空",
}

// PostForm 发布/编辑帖子的表单
type PostForm struct {
	Text  string `form:"text" validate:"notblank"`
	Group string `form:"group" validate:"omitempty,number"`
}

// CommentForm 评论表单
type CommentForm struct {
	Text string `form:"text" validate:"notblank"`
}

// Validate 校验表单，返回 字段名 -> 错误文案。合法时返回空 map。
func Validate(form interface{}) map[string]string {
	errs := make(map[string]string)
	if err := validate.Struct(form); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			msg, ok := fieldMessages[fe.StructNamespace()]
			if !ok {
				msg = "字段校验失败"
			}
			errs[fe.StructField()] = msg
		}
	}
	return errs
}
