package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"praxihub/backend/internal/model"
)

// tag_list limits
const (
	maxTags      = 50
	maxTagLength = 64
)

// RegisterValidators adds the custom binding tags used by the request DTOs
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("internship_status", validateStatus); err != nil {
		return err
	}
	return v.RegisterValidation("tag_list", validateTagList)
}

// validateStatus accepts canonical and legacy status spellings
func validateStatus(fl validator.FieldLevel) bool {
	_, err := model.ParseStatus(fl.Field().String())
	return err == nil
}

func validateTagList(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Slice {
		return false
	}
	if f.Len() > maxTags {
		return false
	}
	for i := 0; i < f.Len(); i++ {
		tag := strings.TrimSpace(f.Index(i).String())
		if tag == "" || len(tag) > maxTagLength {
			return false
		}
	}
	return true
}
