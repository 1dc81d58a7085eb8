package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// PostHandler exposes the post endpoints.
type PostHandler struct {
	posts *usecase.PostService
}

// NewPostHandler constructs PostHandler.
func NewPostHandler(posts *usecase.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// RegisterRoutes binds post routes onto an already guarded group.
func (h *PostHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
	r.GET("/:id/files", h.files)
	r.DELETE("/:id", h.delete)
}

func (h *PostHandler) create(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	uploads := make([]usecase.FileUpload, 0, len(req.Files))
	for _, file := range req.Files {
		uploads = append(uploads, usecase.FileUpload{Filename: file.Filename, Content: file.Content})
	}

	post, err := h.posts.Create(c.Request.Context(), access.UserID, req.Text, uploads)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to create post")
		return
	}

	c.JSON(http.StatusCreated, toPostResponse(*post))
}

func (h *PostHandler) list(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	posts, err := h.posts.ListByAuthor(c.Request.Context(), access.UserID, limit)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list posts")
		return
	}

	out := make([]PostResponse, 0, len(posts))
	for _, post := range posts {
		out = append(out, toPostResponse(post))
	}

	c.JSON(http.StatusOK, out)
}

func (h *PostHandler) get(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPostNotFound, Status: http.StatusNotFound, Message: "post not found"},
		}, http.StatusInternalServerError, "failed to get post")
		return
	}

	c.JSON(http.StatusOK, toPostResponse(*post))
}

func (h *PostHandler) files(c *gin.Context) {
	files, err := h.posts.Files(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPostNotFound, Status: http.StatusNotFound, Message: "post not found"},
		}, http.StatusInternalServerError, "failed to resolve post files")
		return
	}

	c.JSON(http.StatusOK, PostFilesResponse{Files: files})
}

func (h *PostHandler) delete(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	if err := h.posts.Delete(c.Request.Context(), access.UserID, c.Param("id")); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPostNotFound, Status: http.StatusNotFound, Message: "post not found"},
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "not the post author"},
		}, http.StatusInternalServerError, "failed to delete post")
		return
	}

	c.Status(http.StatusNoContent)
}
