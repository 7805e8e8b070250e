package devbackend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// createAnnouncementRequest はお知らせ作成リクエスト。
type createAnnouncementRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category"`
	IsActive *bool  `json:"is_active"`
}

// updateAnnouncementRequest はお知らせ更新リクエスト。指定されたフィールドだけを変更する。
type updateAnnouncementRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
	IsActive *bool   `json:"is_active"`
}

// handleListAnnouncements はお知らせ一覧を返すハンドラを返す。
func (s *Server) handleListAnnouncements() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := parseListFilter(c)
		items, total, err := s.store.ListAnnouncements(c.Request.Context(), f)
		if err != nil {
			s.respondInternal(c, "お知らせ一覧の取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": newPaginated(items, f, total)})
	}
}

// handleGetAnnouncement はお知らせ1件を返すハンドラを返す。
func (s *Server) handleGetAnnouncement() gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := s.store.GetAnnouncement(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "お知らせの取得に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": a})
	}
}

// handleCreateAnnouncement はお知らせを作成するハンドラを返す。
func (s *Server) handleCreateAnnouncement() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAnnouncementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, bindingErrors(err))
			return
		}

		a := Announcement{
			Title:    req.Title,
			Content:  req.Content,
			Category: req.Category,
			IsActive: true,
		}
		if a.Category == "" {
			a.Category = "general"
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}

		created, err := s.store.CreateAnnouncement(c.Request.Context(), a)
		if err != nil {
			s.respondInternal(c, "お知らせの作成に失敗", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Announcement created", "data": created})
	}
}

// handleUpdateAnnouncement はお知らせを部分更新するハンドラを返す。
func (s *Server) handleUpdateAnnouncement() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateAnnouncementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, bindingErrors(err))
			return
		}

		a, err := s.store.GetAnnouncement(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "お知らせの取得に失敗", err)
			return
		}

		if req.Title != nil {
			if *req.Title == "" {
				respondValidation(c, map[string][]string{"title": {validationMessage("title", "required")}})
				return
			}
			a.Title = *req.Title
		}
		if req.Content != nil {
			a.Content = *req.Content
		}
		if req.Category != nil {
			a.Category = *req.Category
		}
		if req.IsActive != nil {
			a.IsActive = *req.IsActive
		}

		updated, err := s.store.UpdateAnnouncement(c.Request.Context(), a)
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "お知らせの更新に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Announcement updated", "data": updated})
	}
}

// handleDeleteAnnouncement はお知らせを削除するハンドラを返す。
func (s *Server) handleDeleteAnnouncement() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.DeleteAnnouncement(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			respondNotFound(c)
			return
		}
		if err != nil {
			s.respondInternal(c, "お知らせの削除に失敗", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Announcement deleted"})
	}
}
