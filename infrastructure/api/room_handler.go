package api

import (
	"net/http"
	"time"

	"planning-poker/domain"
	"planning-poker/errors"
	"planning-poker/infrastructure/ws"
	"planning-poker/services"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	rooms services.IRoomService
	now   func() time.Time
}

func NewRoomHandler(rooms services.IRoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms, now: time.Now}
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *RoomHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.DELETE("/:id", h.delete)
}

func (h *RoomHandler) create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, errors.ErrInvalidRequest)
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), currentProfile(c), req.Name)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusCreated, statusCreated, gin.H{"room": services.Summarize(room)}, "")
}

func (h *RoomHandler) list(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context(), currentProfile(c).UserID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, statusOK, gin.H{"rooms": rooms}, "")
}

func (h *RoomHandler) get(c *gin.Context) {
	room, err := h.rooms.Get(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, statusOK, gin.H{"room": ws.NewRoomView(room, h.now())}, "")
}

func (h *RoomHandler) delete(c *gin.Context) {
	err := h.rooms.Delete(c.Request.Context(), domain.RoomID(c.Param("id")), currentProfile(c).UserID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, statusOK, gin.H{"message": "Room deleted"}, "")
}
