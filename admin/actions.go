package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"vetclinic/events"
	"vetclinic/monitoring"
)

// Action runs on the rows selected in a change list and returns the message
// shown to the user.
type Action struct {
	Name        string                                                             `json:"name"`
	Description string                                                             `json:"description"`
	Run         func(ctx context.Context, tx *gorm.DB, ids []uint) (string, error) `json:"-"`
}

// deleteSelected is available on every model. It deletes row by row so
// model hooks run.
var deleteSelected = Action{
	Name:        "delete_selected",
	Description: "Delete selected",
}

type actionRequest struct {
	Action string `json:"action" binding:"required"`
	IDs    []uint `json:"ids"`
}

func (m *modelAdmin[T, P]) runAction(c *gin.Context) {
	ctx := c.Request.Context()
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	action, ok := m.actions[req.Action]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown action %q", req.Action)})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Items must be selected in order to perform actions on them. No items have been changed."})
		return
	}

	var (
		message string
		changed []uint
	)
	err := m.site.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if action.Name == deleteSelected.Name {
			message, changed, err = m.deleteRows(tx, req.IDs)
			return err
		}
		if err := tx.Model(new(T)).Where("id IN ?", req.IDs).Pluck("id", &changed).Error; err != nil {
			return err
		}
		message, err = action.Run(ctx, tx, changed)
		return err
	})
	if err != nil {
		serverError(c, err)
		return
	}

	kind := events.Updated
	if action.Name == deleteSelected.Name {
		kind = events.Deleted
	}
	for _, id := range changed {
		m.site.changed(ctx, m.cfg.Name, kind, id, nil)
	}
	monitoring.AdminActions.WithLabelValues(m.cfg.Name, action.Name).Inc()
	c.JSON(http.StatusOK, gin.H{"message": message, "ids": changed})
}

func (m *modelAdmin[T, P]) deleteRows(tx *gorm.DB, ids []uint) (string, []uint, error) {
	var rows []T
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return "", nil, err
	}
	deleted := make([]uint, 0, len(rows))
	for i := range rows {
		if err := tx.Delete(&rows[i]).Error; err != nil {
			return "", nil, fmt.Errorf("failed to delete %s: %w", P(&rows[i]).String(), err)
		}
		deleted = append(deleted, P(&rows[i]).PrimaryKey())
	}
	name := m.cfg.VerboseNamePlural
	if len(deleted) == 1 {
		name = m.cfg.VerboseName
	}
	return fmt.Sprintf("Successfully deleted %d %s.", len(deleted), name), deleted, nil
}
