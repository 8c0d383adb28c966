package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vetclinic/models"
)

// parseID reads a positive numeric path parameter. Anything else is
// treated as an unknown record.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// serverError records err for the error middleware and answers 500.
func serverError(c *gin.Context, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func respondLookupError(c *gin.Context, what string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		notFound(c, what)
		return
	}
	serverError(c, err)
}

// redirect answers a successful form POST the way browsers expect.
func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}
