package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/services"
)

// collection is the list envelope every index endpoint returns.
type collection struct {
	Data interface{}       `json:"data"`
	Meta services.PageMeta `json:"meta"`
}

func respondCollection(c *gin.Context, data interface{}, meta services.PageMeta) {
	c.JSON(http.StatusOK, collection{Data: data, Meta: meta})
}

func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"message": "This action is unauthorized."})
}

func respondNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"message": what + " not found"})
}

// respondValidationError turns gin binding failures into the 422 shape
// the form layer renders: {"message": ..., "errors": {field: [msgs]}}.
func respondValidationError(c *gin.Context, err error) {
	fieldErrors := map[string][]string{}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := snakeCase(fe.Field())
			fieldErrors[field] = append(fieldErrors[field], validationMessage(fe))
		}
	} else {
		fieldErrors["body"] = []string{err.Error()}
	}

	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  fieldErrors,
	})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "eqfield":
		return "must match " + snakeCase(fe.Param())
	default:
		return "is invalid"
	}
}

// snakeCase maps the Go struct field name back to its JSON key, so
// error bags use "project_id" rather than "ProjectID".
func snakeCase(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && field[i-1] >= 'a' && field[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func respondFieldError(c *gin.Context, field, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  map[string][]string{field: {message}},
	})
}

// respondServiceError maps persistence-layer failures onto the error
// taxonomy: missing rows become 404, duplicate emails 422, anything
// else a plain 500 without internal detail.
func respondServiceError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondNotFound(c, what)
	case errors.Is(err, services.ErrEmailTaken):
		respondFieldError(c, "email", "has already been taken")
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to process request"})
	}
}
