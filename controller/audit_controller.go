// api/controller/audit_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veritas-grc/veritas/api/audit"
	audit_errors "github.com/veritas-grc/veritas/api/errors"
	"github.com/veritas-grc/veritas/api/util"
	helper_util "github.com/veritas-grc/veritas/api/util/helper"
)

type AuditController struct {
	auditService audit.Service
}

func NewAuditController(auditService audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	trail := r.Group("/audit-trail")
	{
		trail.GET("", ac.ListEntries)
		trail.GET("/stats", ac.GetStats)
		trail.GET("/:sequence", ac.GetEntry)
		trail.POST("/entries", ac.RecordEntry)
		trail.POST("/verify", ac.VerifyChain)
		trail.POST("/export", ac.ExportEntries)
	}
}

// entryResponse adds the id alias the audit trail UI expects (id equals
// sequence) without duplicating the field on the ledger model.
type entryResponse struct {
	ID uint64 `json:"id"`
	audit.Entry
}

func toEntryResponse(e audit.Entry) entryResponse {
	return entryResponse{ID: e.Sequence, Entry: e}
}

// ListEntries endpoint
func (ac *AuditController) ListEntries(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid filter parameters", err)
		return
	}
	page, perPage, err := helper_util.GetPageParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	result, err := ac.auditService.List(c, filter, page, perPage)
	if err != nil {
		switch {
		case errors.Is(err, audit_errors.ErrInvalidPagination),
			errors.Is(err, audit_errors.ErrValidation):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid query parameters", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to list audit entries", err)
		}
		return
	}

	entries := make([]entryResponse, len(result.Entries))
	for i, e := range result.Entries {
		entries[i] = toEntryResponse(e)
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"total":    result.Total,
		"page":     result.Page,
		"per_page": result.PerPage,
	})
}

// GetEntry endpoint
func (ac *AuditController) GetEntry(c *gin.Context) {
	sequence, err := strconv.ParseUint(c.Param("sequence"), 10, 64)
	if err != nil || sequence == 0 {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid sequence", err)
		return
	}

	entry, err := ac.auditService.Get(c, sequence)
	if err != nil {
		if errors.Is(err, audit_errors.ErrEntryNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Audit entry not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve audit entry", err)
		}
		return
	}

	c.JSON(http.StatusOK, toEntryResponse(*entry))
}

type recordEntryRequest struct {
	Action         string                 `json:"action" binding:"required"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id"`
	EntityName     string                 `json:"entity_name"`
	ChangedFields  []string               `json:"changed_fields"`
	OldValues      map[string]interface{} `json:"old_values"`
	NewValues      map[string]interface{} `json:"new_values"`
	ActionCategory string                 `json:"action_category"`
	IsSensitive    bool                   `json:"is_sensitive"`
}

// RecordEntry endpoint: the write path business modules call when they
// mutate an audited entity.
func (ac *AuditController) RecordEntry(c *gin.Context) {
	var req recordEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid audit entry data", err)
		return
	}

	candidate := audit.Candidate{
		Actor:          actorFromContext(c),
		Action:         audit.Action(req.Action),
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
		EntityName:     req.EntityName,
		ChangedFields:  req.ChangedFields,
		OldValues:      req.OldValues,
		NewValues:      req.NewValues,
		IPAddress:      c.ClientIP(),
		ActionCategory: req.ActionCategory,
		IsSensitive:    req.IsSensitive,
	}

	entry, err := ac.auditService.Record(c, candidate)
	if err != nil {
		switch {
		case errors.Is(err, audit_errors.ErrValidation),
			errors.Is(err, audit_errors.ErrEncoding):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid audit entry data", err)
		case errors.Is(err, audit_errors.ErrAppend),
			errors.Is(err, audit_errors.ErrAppenderClosed):
			util.RespondWithError(c, http.StatusServiceUnavailable, "Audit ledger temporarily unavailable", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to record audit entry", err)
		}
		return
	}

	c.JSON(http.StatusCreated, toEntryResponse(*entry))
}

type verifyRequest struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// VerifyChain endpoint. An empty body walks the whole chain; a body with
// from/to verifies just that range against its stored anchor.
func (ac *AuditController) VerifyChain(c *gin.Context) {
	var req verifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid verify request", err)
			return
		}
	}

	var (
		verification *audit.Verification
		err          error
	)
	if req.From > 0 || req.To > 0 {
		verification, err = ac.auditService.VerifyRange(c, req.From, req.To)
	} else {
		verification, err = ac.auditService.Verify(c)
	}
	if err != nil {
		if errors.Is(err, audit_errors.ErrValidation) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid verify request", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to verify audit chain", err)
		}
		return
	}

	c.JSON(http.StatusOK, verification)
}

// GetStats endpoint
func (ac *AuditController) GetStats(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid days parameter", err)
		return
	}

	stats, err := ac.auditService.Stats(c, days)
	if err != nil {
		if errors.Is(err, audit_errors.ErrValidation) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid days parameter", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to compute audit stats", err)
		}
		return
	}

	c.JSON(http.StatusOK, stats)
}

type exportRequest struct {
	Format     string `json:"format" binding:"required,oneof=json csv"`
	EntityType string `json:"entity_type"`
	Action     string `json:"action"`
	UserID     string `json:"user_id"`
	DateFrom   string `json:"date_from"`
	DateTo     string `json:"date_to"`
	Reason     string `json:"reason" binding:"required"`
}

// ExportEntries endpoint
func (ac *AuditController) ExportEntries(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid export request", err)
		return
	}

	dateFrom, err := helper_util.ParseDateParam(req.DateFrom)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid date_from", err)
		return
	}
	dateTo, err := helper_util.ParseDateParam(req.DateTo)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid date_to", err)
		return
	}

	record, err := ac.auditService.Export(c, audit.ExportRequest{
		Filter: audit.Filter{
			EntityType: req.EntityType,
			Action:     audit.Action(req.Action),
			UserID:     req.UserID,
			DateFrom:   dateFrom,
			DateTo:     dateTo,
		},
		Format:    audit.ExportFormat(req.Format),
		Reason:    req.Reason,
		Actor:     actorFromContext(c),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, audit_errors.ErrExportReasonRequired),
			errors.Is(err, audit_errors.ErrValidation):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid export request", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to export audit entries", err)
		}
		return
	}

	if record.Format == audit.FormatCSV {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=audit-export-%s.csv", record.ID))
		c.Header("X-Manifest-Hash", record.ManifestHash)
		if record.Warning != "" {
			c.Header("X-Export-Warning", record.Warning)
		}
		c.Data(http.StatusOK, "text/csv", record.Payload)
		return
	}

	// JSON exports embed the payload as-is instead of base64-encoding it.
	response := gin.H{
		"id":            record.ID,
		"format":        record.Format,
		"reason":        record.Reason,
		"generated_at":  record.GeneratedAt,
		"entry_count":   record.EntryCount,
		"manifest_hash": record.ManifestHash,
		"payload":       json.RawMessage(record.Payload),
	}
	if record.Warning != "" {
		response["warning"] = record.Warning
	}
	c.JSON(http.StatusOK, response)
}

func actorFromContext(c *gin.Context) audit.Actor {
	id, name, email, ok := util.GetActorFromContext(c)
	if !ok {
		return audit.SystemActor
	}
	return audit.Actor{ID: id, Name: name, Email: email}
}
