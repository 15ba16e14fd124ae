// Message HTTP handlers.
//
// This file exposes the messaging gate endpoints:
//   - POST /connections/{id}/messages   (send a message on an accepted connection)
//   - GET  /connections/{id}/messages   (list paginated messages, ETag support)
//
// Only the two parties of a connection reach these; the service decides.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/skillswap-connections/internal/domain"
	"github.com/tbourn/skillswap-connections/internal/repo"
	"github.com/tbourn/skillswap-connections/internal/utils"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
//
// Content is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer, which trims it and enforces the
// maximum length.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"Does Saturday morning work for the first session?"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

const (
	defaultMessagePageSize = 20
	maxMessagePageSize     = 100
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses runs of 3+ LFs to two,
// and trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message on a connection
// @Description Stores a message from the caller. The connection must be accepted and the caller one of its parties.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string  true  "Connection ID (UUID)"  format(uuid)
// @Param       body  body  handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  handlers.Envelope{data=domain.Message}
// @Failure     400  {object}  handlers.Envelope  "Bad request or connection not accepted"
// @Failure     403  {object}  handlers.Envelope  "Caller is not a party"
// @Failure     404  {object}  handlers.Envelope  "Connection not found"
// @Router      /connections/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	id, valid := connectionID(c)
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	m, err := h.msgs.Send(c.Request.Context(), actor, id, content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, m)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages on a connection
// @Description Returns a page of messages, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Connection ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.Envelope{data=handlers.ListMessagesResponse}
// @Success     304  "Not Modified"
// @Failure     403  {object}  handlers.Envelope  "Caller is not a party"
// @Failure     404  {object}  handlers.Envelope  "Connection not found"
// @Router      /connections/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	actor, found := actorOf(c)
	if !found {
		return
	}
	id, valid := connectionID(c)
	if !valid {
		return
	}
	page, pageSize := utils.PageParams(c.Query("page"), c.Query("page_size"), defaultMessagePageSize, maxMessagePageSize)

	items, total, err := h.msgs.ListPage(ctx, actor, id, page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The tag is computed after the party check so it never leaks to outsiders.
	if h.db != nil {
		if count, maxTS, err := repo.MessagesStats(ctx, h.db, id); err == nil {
			etag := weakETag("messages", fmt.Sprintf("%s:%d:%d", id, page, pageSize), count, maxTS)
			c.Header("ETag", etag)
			if etagMatches(c.GetHeader("If-None-Match"), etag) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages: nonNil(items),
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
