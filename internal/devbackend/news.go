package devbackend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// newsRequest はニュース作成・更新リクエスト。指定されたフィールドだけを変更する。
type newsRequest struct {
	Title    *string `json:"title" form:"title"`
	Content  *string `json:"content" form:"content"`
	Category *string `json:"category" form:"category"`
	Status   *string `json:"status" form:"status"`
}

// handleGetNews はニュース1件を返すハンドラを返す。
func (s *Server) handleGetNews() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.GetNews(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "ニュースの取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": n})
	}
}

// handleSaveNews はニュースを作成または更新するハンドラを返す。
// JSONとmultipartの両方を受け付け、multipartの image は名前だけを記録する。
func (s *Server) handleSaveNews() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newsRequest
		// Content-Type に応じてJSONかフォームでバインドする
		if err := c.ShouldBind(&req); err != nil {
			respondValidation(c, bindingErrors(err))
			return
		}

		id := c.Param("id")
		n, err := s.store.GetNews(c.Request.Context(), id)
		switch {
		case errors.Is(err, ErrNotFound):
			n = News{ID: id, Category: "general", Status: StatusDraft}
		case err != nil:
			s.respondInternal(c, "ニュースの取得に失敗", err)
			return
		}

		if req.Title != nil {
			n.Title = *req.Title
		}
		if req.Content != nil {
			n.Content = *req.Content
		}
		if req.Category != nil && *req.Category != "" {
			n.Category = *req.Category
		}
		if req.Status != nil {
			n.Status = *req.Status
		}
		if file, err := c.FormFile("image"); err == nil {
			n.ImageName = file.Filename
		}

		errs := map[string][]string{}
		if n.Title == "" {
			errs["title"] = []string{validationMessage("title", "required")}
		}
		if n.Status != StatusDraft && n.Status != StatusPublished {
			errs["status"] = []string{validationMessage("status", "oneof")}
		}
		if len(errs) > 0 {
			respondValidation(c, errs)
			return
		}

		saved, err := s.store.SaveNews(c.Request.Context(), n)
		if err != nil {
			s.respondInternal(c, "ニュースの保存に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "News saved", "data": saved})
	}
}

// handleDeleteNews はニュースを削除するハンドラを返す。成功時はボディ無しの204を返す。
func (s *Server) handleDeleteNews() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.DeleteNews(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "ニュースの削除に失敗", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleListPublishedNews は公開済みニュースの一覧を返すハンドラを返す。
func (s *Server) handleListPublishedNews() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := parseListFilter(c)
		items, total, err := s.store.ListPublishedNews(c.Request.Context(), f)
		if err != nil {
			s.respondInternal(c, "ニュース一覧の取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": newPaginated(items, f, total)})
	}
}
