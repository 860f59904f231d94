package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/irisdrone/pipewatch/internal/registry"
)

var validatorsOnce sync.Once

// registerValidators adds the defectstatus binding tag to gin's validator.
func registerValidators() {
	validatorsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("defectstatus", func(fl validator.FieldLevel) bool {
				_, err := registry.ParseStatus(fl.Field().String())
				return err == nil
			})
		}
	})
}
