// api/controller/controllers.go
package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/veritas-grc/veritas/api/audit"
	helper_util "github.com/veritas-grc/veritas/api/util/helper"
)

type Controllers struct {
	Audit *AuditController
}

func InitializeControllers(auditService audit.Service) *Controllers {
	return &Controllers{
		Audit: NewAuditController(auditService),
	}
}

func filterFromQuery(c *gin.Context) (audit.Filter, error) {
	dateFrom, err := helper_util.ParseDateParam(c.Query("date_from"))
	if err != nil {
		return audit.Filter{}, err
	}
	dateTo, err := helper_util.ParseDateParam(c.Query("date_to"))
	if err != nil {
		return audit.Filter{}, err
	}

	return audit.Filter{
		EntityType: c.Query("entity_type"),
		Action:     audit.Action(c.Query("action")),
		UserID:     c.Query("user_id"),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	}, nil
}
