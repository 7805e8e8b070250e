package devbackend

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// paginated はページング付き一覧のレスポンス。
type paginated[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

func newPaginated[T any](items []T, f ListFilter, total int) paginated[T] {
	last := int(math.Ceil(float64(total) / float64(f.PerPage)))
	if last < 1 {
		last = 1
	}
	return paginated[T]{Data: items, CurrentPage: f.Page, PerPage: f.PerPage, Total: total, LastPage: last}
}

// parseListFilter はクエリから一覧の条件を読む。不正な数値はデフォルトに戻す。
func parseListFilter(c *gin.Context) ListFilter {
	f := ListFilter{
		Page:     positiveInt(c.Query("page"), 1),
		PerPage:  positiveInt(c.Query("per_page"), defaultPerPage),
		Category: c.Query("category"),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	switch c.Query("is_active") {
	case "1", "true":
		v := true
		f.IsActive = &v
	case "0", "false":
		v := false
		f.IsActive = &v
	}
	return f
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// respondMessage は {"message": msg} を返す。
func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}

// respondNotFound は404を返す。
func respondNotFound(c *gin.Context) {
	respondMessage(c, http.StatusNotFound, "Not found.")
}

// respondInternal はエラーをログに出して500を返す。
func (s *Server) respondInternal(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	respondMessage(c, http.StatusInternalServerError, "Server Error")
}

// respondValidation はフィールドごとのエラーを422で返す。
func respondValidation(c *gin.Context, errs map[string][]string) {
	msg := "The given data was invalid."
	for _, field := range []string{"title", "email", "role", "content", "status"} {
		if m, ok := errs[field]; ok && len(m) > 0 {
			msg = m[0]
			break
		}
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msg, "errors": errs})
}

// bindingErrors はGinのバインドエラーをフィールドごとのメッセージに変換する。
func bindingErrors(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string][]string{"body": {"The request body is invalid."}}
	}

	out := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		out[field] = append(out[field], validationMessage(field, fe.Tag()))
	}
	return out
}

func validationMessage(field, tag string) string {
	switch tag {
	case "required":
		return "The " + field + " field is required."
	case "email":
		return "The " + field + " must be a valid email address."
	case "oneof":
		return "The selected " + field + " is invalid."
	default:
		return "The " + field + " field is invalid."
	}
}
