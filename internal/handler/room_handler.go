package handler

import (
	"net/http"
	"strings"
	"time"

	"chatroom/backend/internal/logger"
	"chatroom/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

// MessageResponse is one persisted chat message.
type MessageResponse struct {
	ID        uint64    `json:"id" example:"42"`
	Room      string    `json:"room" example:"general"`
	User      string    `json:"user" example:"alice"`
	Message   string    `json:"message" example:"hello"`
	Timestamp string    `json:"timestamp" example:"14:05"`
	SentAt    time.Time `json:"sent_at"`
}

// PaginatedMessageResponse documents PaginatedResponse[MessageResponse].
type PaginatedMessageResponse struct {
	Data []MessageResponse `json:"data"`
	Meta PaginationMeta    `json:"meta"`
}

// OnlineUsersResponse is the presence snapshot of a room.
type OnlineUsersResponse struct {
	Room  string   `json:"room" example:"general"`
	Users []string `json:"users"`
}

func newMessageResponse(m models.Message) MessageResponse {
	sentAt := m.CreatedAt.UTC()
	return MessageResponse{
		ID:        m.ID,
		Room:      m.Room,
		User:      m.Author,
		Message:   m.Content,
		Timestamp: sentAt.Format("15:04"),
		SentAt:    sentAt,
	}
}

// endregion

// MemberLister reports who is present in a room.
type MemberLister interface {
	Members(room string) []string
}

// RoomHandler serves read-only room state over REST.
type RoomHandler struct {
	db       *gorm.DB
	presence MemberLister
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(db *gorm.DB, presence MemberLister) *RoomHandler {
	return &RoomHandler{db: db, presence: presence}
}

// GetRoomMessages godoc
// @Summary      Get room history
// @Description  Lists persisted messages of a room, newest page first.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        room  path      string  true   "Room name"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(20)
// @Success      200   {object}  PaginatedMessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /rooms/{room}/messages [get]
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	room := strings.TrimSpace(c.Param("room"))
	if room == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Room is required"})
		return
	}
	page, limit := pageParams(c)

	db := h.db.WithContext(c.Request.Context())
	result, err := Paginate[models.Message](db, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("room = ?", room).Order("id DESC")
	}, page, limit)
	if err != nil {
		logger.Ctx(c.Request.Context()).Error().Err(err).Str(logger.FieldRoom, room).Msg("history query failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve messages"})
		return
	}

	data := make([]MessageResponse, len(result.Data))
	for i, m := range result.Data {
		data[i] = newMessageResponse(m)
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(data, result.Meta.TotalItems, page, limit))
}

// GetOnlineUsers godoc
// @Summary      Get online users
// @Description  Returns the users currently joined to a room.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        room  path      string  true  "Room name"
// @Success      200   {object}  OnlineUsersResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /rooms/{room}/users [get]
func (h *RoomHandler) GetOnlineUsers(c *gin.Context) {
	room := strings.TrimSpace(c.Param("room"))
	c.JSON(http.StatusOK, OnlineUsersResponse{Room: room, Users: h.presence.Members(room)})
}
