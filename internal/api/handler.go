package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/jkaflik/blinds2hap/internal/blinds"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	statusOK       = "ok"
	errUnknownName = "unknown blinds"
	errInvalidBody = "invalid body: "
)

// Handler serves the control API. ctx outlives requests and drives the
// motion started by them.
type Handler struct {
	ctx    context.Context
	blinds map[string]blinds.Blinds
	gather prometheus.Gatherer
}

func NewHandler(ctx context.Context, gather prometheus.Gatherer, bs ...blinds.Blinds) *Handler {
	h := &Handler{ctx: ctx, blinds: map[string]blinds.Blinds{}, gather: gather}
	for _, b := range bs {
		h.blinds[b.Name()] = b
	}
	return h
}

type blindsResponse struct {
	Name string `json:"name"`
	blinds.Snapshot
}

type targetRequest struct {
	Position *int `json:"position" binding:"required"`
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)
	if h.gather != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gather, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1/blinds")
	{
		api.GET("", h.list)
		api.GET("/:name", h.withBlinds(h.get))
		api.PUT("/:name/target", h.withBlinds(h.setTarget))
		api.POST("/:name/stop", h.withBlinds(h.stop))
	}

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

func (h *Handler) list(c *gin.Context) {
	resp := make([]blindsResponse, 0, len(h.blinds))
	for name, b := range h.blinds {
		resp = append(resp, blindsResponse{Name: name, Snapshot: b.Snapshot()})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Name < resp[j].Name })

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) withBlinds(next func(c *gin.Context, b blinds.Blinds)) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := h.blinds[c.Param("name")]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": errUnknownName})
			return
		}
		next(c, b)
	}
}

func (h *Handler) get(c *gin.Context, b blinds.Blinds) {
	c.JSON(http.StatusOK, blindsResponse{Name: b.Name(), Snapshot: b.Snapshot()})
}

func (h *Handler) setTarget(c *gin.Context, b blinds.Blinds) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBody + err.Error()})
		return
	}

	if err := b.SetTargetPosition(h.ctx, *req.Position); err != nil {
		logrus.Warn(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, blindsResponse{Name: b.Name(), Snapshot: b.Snapshot()})
}

func (h *Handler) stop(c *gin.Context, b blinds.Blinds) {
	if err := b.Stop(h.ctx); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, blindsResponse{Name: b.Name(), Snapshot: b.Snapshot()})
}
