package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arklim/skills-audit/internal/core/domain"
)

const (
	// DefaultLoginPath receives unauthenticated browser requests.
	DefaultLoginPath = "/account/login"

	ajaxHeader     = "X-Requested-With"
	ajaxHeaderVal  = "XMLHttpRequest"
	validModelKey  = "validated_model"
	returnURLParam = "returnUrl"
)

// Gates builds the admission filters placed in front of protected routes.
type Gates struct {
	loginPath string
}

func NewGates(loginPath string) *Gates {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &Gates{loginPath: loginPath}
}

// RequireRole admits requests whose identity holds one of roles. Anonymous
// browser requests are redirected to the login page; API callers get 401.
func (g *Gates) RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
				return
			}
			target := g.loginPath + "?" + url.Values{returnURLParam: {c.Request.URL.RequestURI()}}.Encode()
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		if !ident.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RequireAuth admits any authenticated identity.
func (g *Gates) RequireAuth() gin.HandlerFunc {
	return g.RequireRole(domain.AllRoles...)
}

// AjaxOnly rejects requests that were not issued by script.
func AjaxOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAjax(c) {
			c.AbortWithStatusJSON(http.StatusBadRequest, newErrorResponse(c, "This action only accepts AJAX requests."))
			return
		}
		c.Next()
	}
}

func isAjax(c *gin.Context) bool {
	return c.GetHeader(ajaxHeader) == ajaxHeaderVal
}

func wantsJSON(c *gin.Context) bool {
	if isAjax(c) {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// FieldValidator is implemented by request models with rules beyond struct tags.
type FieldValidator interface {
	Validate() map[string][]string
}

// ValidationFailure is the 400 body returned by ValidateModel.
type ValidationFailure struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// ValidateModel binds the JSON body into T and rejects the request with every
// field message when binding tags or T's own Validate fail.
func ValidateModel[T any]() gin.HandlerFunc {
	registerJSONFieldNames()
	return func(c *gin.Context) {
		model := new(T)
		fieldErrors := make(map[string][]string)

		if err := c.ShouldBindBodyWithJSON(model); err != nil {
			collectBindErrors(err, fieldErrors)
		}
		if len(fieldErrors) == 0 {
			if v, ok := any(model).(FieldValidator); ok {
				for field, msgs := range v.Validate() {
					fieldErrors[field] = append(fieldErrors[field], msgs...)
				}
			}
		}
		if len(fieldErrors) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, ValidationFailure{
				Success: false,
				Message: "Validation failed",
				Errors:  fieldErrors,
			})
			return
		}

		c.Set(validModelKey, model)
		c.Next()
	}
}

// Model returns the model stored by ValidateModel[T].
func Model[T any](c *gin.Context) (*T, bool) {
	v, ok := c.Get(validModelKey)
	if !ok {
		return nil, false
	}
	model, ok := v.(*T)
	return model, ok
}

func collectBindErrors(err error, dst map[string][]string) {
	var verrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			field := fieldName(fe)
			dst[field] = append(dst[field], fieldMessage(fe))
		}
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		dst[field] = append(dst[field], fmt.Sprintf("Expected a value of type %s", typeErr.Type))
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		dst["body"] = append(dst["body"], "Request body must be valid JSON")
	default:
		dst["body"] = append(dst["body"], "Request body could not be read")
	}
}

func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	label := fe.Field()
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address format"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", label, fe.Param())
	case "url":
		return label + " must be a valid URL"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

var registerOnce sync.Once

// registerJSONFieldNames makes validator report json names instead of Go field names.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}
