package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"yukyubor/backend/internal/model"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义 binding 标签：size_type、currency_code
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("size_type", func(fl validator.FieldLevel) bool {
		return model.ValidSizeType(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
		return model.ValidCurrency(fl.Field().String())
	})
}
