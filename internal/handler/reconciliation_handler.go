package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gstrecon/internal/domain"
	"gstrecon/internal/export"
	"gstrecon/internal/service"
)

const (
	defaultGraphVendors  = 50
	defaultGraphInvoices = 500
)

// ReconciliationHandler handles reconciliation run endpoints.
type ReconciliationHandler struct {
	reconService service.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconService service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconService: reconService}
}

type batchRequest struct {
	Label   string             `json:"label"`
	Records []domain.RawRecord `json:"records"`
}

// bindBatch decodes a batch body. Returns false if the body was rejected (error response already written).
func bindBatch(c *gin.Context) (*batchRequest, bool) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			HandleError(c, err)
			return nil, false
		}
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "body must be a JSON object with a records array")
		return nil, false
	}
	if req.Records == nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "records is required")
		return nil, false
	}
	return &req, true
}

// parseRunID reads the :id path parameter. Returns false if it is not a UUID (error response already written).
func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid reconciliation run ID")
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func parseRiskLevel(s string) (domain.RiskLevel, error) {
	if s == "" {
		return "", nil
	}
	level := domain.RiskLevel(s)
	if !level.Valid() {
		return "", fmt.Errorf("invalid 'risk_level': must be one of High, Medium, Low")
	}
	return level, nil
}

// Preview handles POST /api/v1/reconciliations/preview
// @Summary      Preview a reconciliation
// @Description  Runs the pipeline on a batch and returns the full snapshot without storing it
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Success      200 {object} APIResponse{data=domain.Snapshot}
// @Failure      400 {object} APIResponse
// @Router       /reconciliations/preview [post]
func (h *ReconciliationHandler) Preview(c *gin.Context) {
	req, ok := bindBatch(c)
	if !ok {
		return
	}

	snap, err := h.reconService.Preview(c.Request.Context(), req.Records)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, snap)
}

// Create handles POST /api/v1/reconciliations
// @Summary      Reconcile and store a batch
// @Description  Identical batches return the run stored for them earlier
// @Tags         reconciliations
// @Accept       json
// @Produce      json
// @Success      201 {object} APIResponse{data=domain.Run}
// @Success      200 {object} APIResponse{data=domain.Run}
// @Failure      409 {object} APIResponse
// @Router       /reconciliations [post]
func (h *ReconciliationHandler) Create(c *gin.Context) {
	req, ok := bindBatch(c)
	if !ok {
		return
	}

	res, err := h.reconService.Create(c.Request.Context(), &service.CreateRunInput{
		Label:   strings.TrimSpace(req.Label),
		Records: req.Records,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	if res.Reused {
		RespondOK(c, res.Run)
		return
	}
	RespondCreated(c, res.Run)
}

// List handles GET /api/v1/reconciliations
func (h *ReconciliationHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	runs, total, err := h.reconService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/reconciliations/:id
func (h *ReconciliationHandler) GetByID(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	run, err := h.reconService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, run)
}

// ListMismatches handles GET /api/v1/reconciliations/:id/mismatches
// @Summary      List mismatches of a run
// @Tags         reconciliations
// @Produce      json
// @Param        risk_level query string false "High, Medium or Low"
// @Param        root_cause query string false "Root cause label"
// @Param        q query string false "Invoice number, vendor name or GSTIN substring"
// @Param        sort query string false "risk_score, amount_diff, tax_diff, invoice_number, vendor_name, invoice_date"
// @Param        order query string false "asc or desc" default(desc)
// @Param        offset query int false "Pagination offset" default(0)
// @Param        limit query int false "Pagination limit" default(20)
// @Success      200 {object} APIResponse{data=[]domain.MismatchRecord,meta=PagMeta}
// @Router       /reconciliations/{id}/mismatches [get]
func (h *ReconciliationHandler) ListMismatches(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	level, err := parseRiskLevel(c.Query("risk_level"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	sortBy := c.Query("sort")
	if _, known := domain.MismatchSortColumns[sortBy]; sortBy != "" && !known {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'sort' column")
		return
	}
	order := strings.ToLower(c.DefaultQuery("order", "desc"))
	if order != "asc" && order != "desc" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'order': must be asc or desc")
		return
	}

	offset, limit := parsePagination(c)
	filter := &domain.MismatchFilter{
		RiskLevel: level,
		RootCause: domain.RootCause(c.Query("root_cause")),
		Query:     c.Query("q"),
		SortBy:    sortBy,
		SortDesc:  order == "desc",
		Offset:    offset,
		Limit:     limit,
	}

	mismatches, total, err := h.reconService.ListMismatches(c.Request.Context(), id, filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, mismatches, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ListVendors handles GET /api/v1/reconciliations/:id/vendors
func (h *ReconciliationHandler) ListVendors(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	level, err := parseRiskLevel(c.Query("risk_level"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	offset, limit := parsePagination(c)
	vendors, total, err := h.reconService.ListVendors(c.Request.Context(), id, &domain.VendorFilter{
		RiskLevel: level,
		Query:     c.Query("q"),
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, vendors, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// ListGroups handles GET /api/v1/reconciliations/:id/groups
func (h *ReconciliationHandler) ListGroups(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	status := domain.GroupStatus(c.Query("status"))
	switch status {
	case "", domain.StatusMatched, domain.StatusMismatch, domain.StatusMissing:
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'status': must be Matched, Mismatch or Missing")
		return
	}

	offset, limit := parsePagination(c)
	groups, total, err := h.reconService.ListGroups(c.Request.Context(), id, &domain.GroupFilter{
		Status: status,
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, groups, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Insights handles GET /api/v1/reconciliations/:id/insights
func (h *ReconciliationHandler) Insights(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	insights, err := h.reconService.Insights(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, insights)
}

// Graph handles GET /api/v1/reconciliations/:id/graph
// @Summary      Knowledge graph projection of a run
// @Tags         reconciliations
// @Produce      json
// @Param        layer query string false "all, mismatches or highRisk" default(all)
// @Param        q query string false "Vendor, GSTIN or invoice substring"
// @Param        taxpayer_gstin query string false "GSTIN shown on the taxpayer node"
// @Param        max_vendors query int false "Vendor node cap" default(50)
// @Param        max_invoices query int false "Invoice node cap" default(500)
// @Success      200 {object} APIResponse{data=domain.Graph}
// @Router       /reconciliations/{id}/graph [get]
func (h *ReconciliationHandler) Graph(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	layer := domain.GraphLayer(c.DefaultQuery("layer", string(domain.LayerAll)))
	switch layer {
	case domain.LayerAll, domain.LayerMismatches, domain.LayerHighRisk:
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'layer': must be all, mismatches or highRisk")
		return
	}
	maxVendors, err := strconv.Atoi(c.DefaultQuery("max_vendors", strconv.Itoa(defaultGraphVendors)))
	if err != nil || maxVendors < 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'max_vendors': must be a non-negative integer")
		return
	}
	maxInvoices, err := strconv.Atoi(c.DefaultQuery("max_invoices", strconv.Itoa(defaultGraphInvoices)))
	if err != nil || maxInvoices < 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid 'max_invoices': must be a non-negative integer")
		return
	}

	graph, err := h.reconService.Graph(c.Request.Context(), id, domain.GraphOptions{
		Layer:         layer,
		Query:         c.Query("q"),
		TaxpayerGSTIN: c.Query("taxpayer_gstin"),
		MaxVendors:    maxVendors,
		MaxInvoices:   maxInvoices,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, graph)
}

// Export handles GET /api/v1/reconciliations/:id/export
// @Summary      Download the mismatch report
// @Tags         reconciliations
// @Produce      text/csv
// @Param        format query string false "csv or xlsx" default(csv)
// @Success      200 {file} file
// @Failure      400 {object} APIResponse
// @Router       /reconciliations/{id}/export [get]
func (h *ReconciliationHandler) Export(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	file, err := h.reconService.Export(c.Request.Context(), id, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ReportURL handles GET /api/v1/reconciliations/:id/report-url
func (h *ReconciliationHandler) ReportURL(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	url, err := h.reconService.ReportURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"url": url})
}

// Delete handles DELETE /api/v1/reconciliations/:id
func (h *ReconciliationHandler) Delete(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	if err := h.reconService.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "reconciliation run deleted"})
}
