package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/newsletterlab/pulse/internal/httpx/response"
	"github.com/newsletterlab/pulse/internal/httpx/upstream/beehiiv"
)

// PlatformClient defines the upstream calls exposed through the proxy
type PlatformClient interface {
	ListPosts(ctx context.Context, in beehiiv.ListPostsInput) (*beehiiv.PostList, error)
	GetPost(ctx context.Context, publicationID, postID string) (*beehiiv.Post, error)
	GetPublication(ctx context.Context, publicationID string) (*beehiiv.Publication, error)
}

// ProxyHandler forwards the platform API calls using the server-held API key,
// so browsers never see the key.
type ProxyHandler struct {
	client PlatformClient
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(client PlatformClient) *ProxyHandler {
	return &ProxyHandler{client: client}
}

// RegisterRoutes registers proxy routes
func (h *ProxyHandler) RegisterRoutes(r chi.Router) {
	r.Route("/proxy/publications/{publicationId}", func(r chi.Router) {
		r.Get("/", h.GetPublication())
		r.Get("/posts", h.ListPosts())
		r.Get("/posts/{postId}", h.GetPost())
	})
}

// ListPosts handles GET /proxy/publications/{publicationId}/posts?page=&limit=
func (h *ProxyHandler) ListPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := intParam(r, "page", 1)
		if err != nil || page < 1 {
			response.BadRequest(w, "page must be a positive integer")
			return
		}
		limit, err := intParam(r, "limit", 0)
		if err != nil || limit < 0 || limit > 100 {
			response.BadRequest(w, "limit must be between 0 and 100")
			return
		}

		out, err := h.client.ListPosts(r.Context(), beehiiv.ListPostsInput{
			PublicationID: chi.URLParam(r, "publicationId"),
			Page:          page,
			Limit:         limit,
		})
		if err != nil {
			handleProxyError(w, err)
			return
		}
		response.OK(w, out)
	}
}

// GetPost handles GET /proxy/publications/{publicationId}/posts/{postId}
func (h *ProxyHandler) GetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.client.GetPost(r.Context(), chi.URLParam(r, "publicationId"), chi.URLParam(r, "postId"))
		if err != nil {
			handleProxyError(w, err)
			return
		}
		response.OK(w, map[string]interface{}{"data": post})
	}
}

// GetPublication handles GET /proxy/publications/{publicationId}
func (h *ProxyHandler) GetPublication() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub, err := h.client.GetPublication(r.Context(), chi.URLParam(r, "publicationId"))
		if err != nil {
			handleProxyError(w, err)
			return
		}
		response.OK(w, map[string]interface{}{"data": pub})
	}
}

// handleProxyError passes upstream statuses through and reports transport failures as 502
func handleProxyError(w http.ResponseWriter, err error) {
	var apiErr *beehiiv.APIError
	if errors.As(err, &apiErr) {
		response.Error(w, apiErr.Status, apiErr.Error())
		return
	}
	response.BadGateway(w, err.Error())
}
