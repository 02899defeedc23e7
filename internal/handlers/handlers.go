// Package handlers exposes the reconciliation operations over HTTP.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"finrecon/bankrecon/internal/matcher"
	"finrecon/bankrecon/internal/parser"
	"finrecon/bankrecon/internal/reconerror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger allows setting a configured logger.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// ReconHandler adapts the reconciliation service to gin.
type ReconHandler struct {
	service *matcher.Service
}

// NewReconHandler creates the handler set.
func NewReconHandler(s *matcher.Service) *ReconHandler {
	return &ReconHandler{service: s}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var (
		notFound   *reconerror.NotFoundError
		locked     *reconerror.LockedError
		parse      *reconerror.ParseError
		conflict   *reconerror.ConflictError
		validation *reconerror.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &locked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &parse):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ImportStatement accepts a statement file as multipart upload and imports
// it. The format is taken from the "format" form field, defaulting to
// auto-detection.
func (h *ReconHandler) ImportStatement(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	format := parser.Format(c.DefaultPostForm("format", string(parser.FormatAuto)))
	result, err := h.service.Import(c.Request.Context(), data, format)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyImported {
		status = http.StatusOK
	}
	log.WithFields(logrus.Fields{
		"file":      header.Filename,
		"statement": result.Statement.ID,
	}).Info("Statement import handled")
	c.JSON(status, result)
}

// AutoMatch runs the automatic matching pass over one statement.
func (h *ReconHandler) AutoMatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement ID"})
		return
	}

	summary, err := h.service.AutoMatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Report returns the reconciliation summary for one statement.
func (h *ReconHandler) Report(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement ID"})
		return
	}

	report, err := h.service.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostStatement locks a statement against further match changes.
func (h *ReconHandler) PostStatement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid statement ID"})
		return
	}

	if err := h.service.PostStatement(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "statement posted"})
}

// Suggestions returns the ranked candidate targets for one transaction.
// ?include_low=true also returns low confidence candidates.
func (h *ReconHandler) Suggestions(c *gin.Context) {
	includeLow := c.Query("include_low") == "true"
	scored, err := h.service.Suggestions(c.Request.Context(), c.Param("id"), includeLow)
	if err != nil {
		respondError(c, err)
		return
	}

	type suggestion struct {
		TargetType string   `json:"target_type"`
		TargetID   string   `json:"target_id"`
		Confidence float64  `json:"confidence"`
		Band       string   `json:"band"`
		Rules      []string `json:"rules"`
	}
	out := make([]suggestion, 0, len(scored))
	for _, sc := range scored {
		rules := make([]string, 0, len(sc.Tags))
		for _, t := range sc.Tags {
			rules = append(rules, string(t))
		}
		out = append(out, suggestion{
			TargetType: string(sc.TargetType),
			TargetID:   sc.TargetID,
			Confidence: sc.Confidence,
			Band:       string(sc.Band),
			Rules:      rules,
		})
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

// ManualMatch pairs a transaction with an operator-chosen target.
func (h *ReconHandler) ManualMatch(c *gin.Context) {
	var payload struct {
		TargetID string `json:"target_id"`
		Actor    string `json:"actor"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id required"})
		return
	}
	if payload.Actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor required"})
		return
	}

	status, err := h.service.ManualMatch(c.Request.Context(), c.Param("id"), payload.TargetID, payload.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction matched", "status": status})
}

// Ignore marks a transaction as needing no target.
func (h *ReconHandler) Ignore(c *gin.Context) {
	var payload struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor required"})
		return
	}

	if err := h.service.Ignore(c.Request.Context(), c.Param("id"), payload.Actor, payload.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction ignored"})
}

// Unmatch reverts a transaction to unmatched.
func (h *ReconHandler) Unmatch(c *gin.Context) {
	var payload struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor required"})
		return
	}

	if err := h.service.Unmatch(c.Request.Context(), c.Param("id"), payload.Actor, payload.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "match reverted"})
}
