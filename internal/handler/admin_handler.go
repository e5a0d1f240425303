package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"foodwaste_ussd/internal/middleware"
	"foodwaste_ussd/internal/model"
	"foodwaste_ussd/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler serves the operator API
type AdminHandler struct {
	service service.AdminService
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(s service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: s, logger: logger.Named("admin_handler")}
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req struct {
		Phone    string `json:"phone" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAdminDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Error during operator login", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to login"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"phone":   req.Phone,
		"role":    model.RoleAdmin,
		"token":   token,
	})
}

func listingFilters(c *gin.Context) model.ListingFilters {
	var filters model.ListingFilters
	if status := c.Query("status"); status != "" {
		filters.Status = &status
	}
	if wasteType := c.Query("waste_type"); wasteType != "" {
		filters.WasteType = &wasteType
	}
	return filters
}

func (h *AdminHandler) ListListings(c *gin.Context) {
	listings, err := h.service.ListListings(c.Request.Context(), listingFilters(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Error listing waste listings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listings"})
		return
	}
	if listings == nil {
		listings = []model.ListingView{}
	}
	c.JSON(http.StatusOK, listings)
}

func (h *AdminHandler) Locations(c *gin.Context) {
	stats, err := h.service.LocationSummary(c.Request.Context())
	if err != nil {
		h.logger.Error("Error summarising locations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve locations"})
		return
	}
	if stats == nil {
		stats = []model.LocationStat{}
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("phone"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Error fetching user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) ExportListingsCSV(c *gin.Context) {
	csvBuffer, err := h.service.ExportListingsCSV(c.Request.Context(), listingFilters(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Error exporting listings to CSV", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export listings to CSV"})
		return
	}

	fileName := fmt.Sprintf("listings_export_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, "text/csv", csvBuffer.Bytes())
}

// RegisterAdminRoutes registers the operator routes; everything but login needs an admin token
func (h *AdminHandler) RegisterAdminRoutes(rg *gin.RouterGroup, jwtAuthMW gin.HandlerFunc) {
	adminGroup := rg.Group("/admin")
	adminGroup.POST("/login", h.Login)

	protected := adminGroup.Group("", jwtAuthMW, middleware.AdminMiddleware())
	{
		protected.GET("/listings", h.ListListings)
		protected.GET("/listings/export/csv", h.ExportListingsCSV)
		protected.GET("/locations", h.Locations)
		protected.GET("/users/:phone", h.GetUser)
	}
}
