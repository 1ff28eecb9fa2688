package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/problem-portal/internal/errs"
	"github.com/psds-microservice/problem-portal/internal/service"
	"github.com/psds-microservice/problem-portal/internal/view"
)

type ProblemHandler struct {
	svc          service.PortalServicer
	dedupDefault bool
}

func NewProblemHandler(svc service.PortalServicer, dedupDefault bool) *ProblemHandler {
	return &ProblemHandler{svc: svc, dedupDefault: dedupDefault}
}

// List serves GET /problems?q=&category=&priority=&state=&active=&range=&dedup=
func (h *ProblemHandler) List(c *gin.Context) {
	f := view.NewFilterState()
	facets := map[string]view.Facet{
		"category": view.FacetCategory,
		"priority": view.FacetPriority,
		"state":    view.FacetState,
		"active":   view.FacetActive,
		"range":    view.FacetDateRange,
	}
	for param, facet := range facets {
		v := c.Query(param)
		if v == "" {
			continue
		}
		next, err := f.WithFacet(facet, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f = next
	}
	dedupOn := h.dedupDefault
	if v := c.Query("dedup"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dedup"})
			return
		}
		dedupOn = parsed
	}

	list, err := h.svc.ListProblems(c.Request.Context(), service.ListParams{
		Term:   c.Query("q"),
		Filter: f,
		Dedup:  dedupOn,
	})
	if err != nil {
		if errors.Is(err, errs.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list problems"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ProblemHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats(c.Request.Context()))
}

func (h *ProblemHandler) Solutions(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Solutions(c.Request.Context(), c.Param("id")))
}

type submitSolutionRequest struct {
	Body string `json:"body"`
}

func (h *ProblemHandler) SubmitSolution(c *gin.Context) {
	var req submitSolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ack, err := h.svc.SubmitSolution(c.Request.Context(), c.Param("id"), req.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"accepted": ack.Accepted,
		"id":       ack.ID,
		"message":  "Thank you! Your solution has been submitted and will be reviewed.",
	})
}

type voteRequest struct {
	Helpful *bool `json:"helpful" binding:"required"`
}

func (h *ProblemHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "helpful is required"})
		return
	}
	ack, err := h.svc.Vote(c.Request.Context(), c.Param("id"), *req.Helpful)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

func (h *ProblemHandler) Choices(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Choices(c.Request.Context(), c.Param("entity"), c.Param("field")))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrEmptySolution):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrProblemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "problem not found"})
	case errors.Is(err, errs.ErrNotAccepted), errors.Is(err, errs.ErrCollaboratorUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
