package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the public site on r.
func RegisterRoutes(r *gin.Engine, site *SiteHandler, doctors *DoctorHandler) {
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	r.GET("/", site.Home)
	r.GET("/search/", site.Search)

	r.GET("/doctors/", doctors.List)
	r.GET("/doctor/new/", doctors.New)
	r.POST("/doctor/new/", doctors.Create)
	r.GET("/doctor/:id/", doctors.Detail)
	r.GET("/doctor/:id/edit/", doctors.Edit)
	r.POST("/doctor/:id/edit/", doctors.Update)
	r.POST("/doctor/:id/delete/", doctors.Delete)
}
