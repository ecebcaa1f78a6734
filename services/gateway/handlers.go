package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"sheetpilot-backend/services/keychain"
	"sheetpilot-backend/services/timesheet"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

type loginRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	StayLoggedIn bool   `json:"stayLoggedIn"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"isAdmin"`
	ExpiresAt string `json:"expiresAt"`
}

// handleLogin accepts either the built-in admin credentials or the
// stored vendor credentials.
func (s Service) handleLogin(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "gateway:handleLogin")
	defer span.End()

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	isAdmin := s.auth.IsAdminLogin(req.Username, req.Password)
	if !isAdmin {
		cred, err := s.keychain.Get(ctx, keychain.ServiceSmartsheet)
		if errors.Is(err, keychain.ErrNotFound) ||
			(err == nil && (cred.Email != req.Username || cred.Password != req.Password)) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "credential lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
	}

	session, err := s.auth.CreateSession(ctx, req.Username, isAdmin, req.StayLoggedIn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:     session.Token,
		Email:     session.Email,
		IsAdmin:   session.IsAdmin,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s Service) handleLogout(c *gin.Context) {
	session := currentSession(c)
	if err := s.auth.ClearSession(c.Request.Context(), session.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (s Service) handleMe(c *gin.Context) {
	session := currentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"email":   session.Email,
		"isAdmin": session.IsAdmin,
	})
}

type credentialsRequest struct {
	Service  string `json:"service"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s Service) handleSetCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	if req.Service == "" {
		req.Service = keychain.ServiceSmartsheet
	}

	err := s.keychain.Set(c.Request.Context(), keychain.Credential{
		Service:  req.Service,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s Service) handleListCredentials(c *gin.Context) {
	list, err := s.keychain.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": list})
}

func (s Service) handleDeleteCredentials(c *gin.Context) {
	err := s.keychain.Delete(c.Request.Context(), c.Param("service"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s Service) handleSaveDraft(c *gin.Context) {
	var draft timesheet.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft payload"})
		return
	}

	id, err := s.timesheet.SaveDraft(c.Request.Context(), draft)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (s Service) handleListDrafts(c *gin.Context) {
	drafts, err := s.timesheet.ListDrafts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drafts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func entryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return 0, false
	}
	return id, true
}

func (s Service) handleUpdateDraft(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}
	var draft timesheet.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draft payload"})
		return
	}

	err := s.timesheet.UpdateDraft(c.Request.Context(), id, draft)
	if errors.Is(err, timesheet.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s Service) handleDeleteDraft(c *gin.Context) {
	id, ok := entryID(c)
	if !ok {
		return
	}

	err := s.timesheet.DeleteDraft(c.Request.Context(), id)
	if errors.Is(err, timesheet.ErrDraftNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type submitResponse struct {
	SubmittedIDs []int64  `json:"submittedIds"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Summary      string   `json:"summary"`
	Errors       []string `json:"errors,omitempty"`
}

func (s Service) handleSubmit(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "gateway:handleSubmit")
	defer span.End()

	result, err := s.timesheet.SubmitPending(ctx)
	if errors.Is(err, timesheet.ErrNothingToSubmit) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to submit"})
		return
	}
	if errors.Is(err, timesheet.ErrNoCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store vendor credentials before submitting"})
		return
	}
	if errors.Is(err, timesheet.ErrSubmissionInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "a submission is already in progress"})
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}

	ids := result.SubmittedIDs
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, submitResponse{
		SubmittedIDs: ids,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
		Summary:      result.Summary(),
		Errors:       result.Errors,
	})
}

func (s Service) handleResetFailed(c *gin.Context) {
	count, err := s.timesheet.ResetFailedToDraft(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s Service) handleExport(c *gin.Context) {
	filename, data, err := s.timesheet.ExportCSV(c.Request.Context())
	if errors.Is(err, timesheet.ErrNothingToExport) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No submitted timesheet entries found to export"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

func (s Service) handleArchive(c *gin.Context) {
	entries, err := s.timesheet.ListArchive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s Service) handleFailed(c *gin.Context) {
	entries, err := s.timesheet.ListFailed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
