package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/auth"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/csvdoc"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/dashboard"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/leads"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
)

// Upload targets
const (
	targetWebhook = "webhook"
	targetStorage = "storage"
)

func owner(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.OwnerID(c)
	if !ok {
		respondError(c, auth.ErrUnauthorized)
	}
	return id, ok
}

func fileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return uuid.Nil, false
	}
	return id, true
}

func tableName(c *gin.Context) (dashboard.TableName, bool) {
	name, err := dashboard.ParseTable(c.Param("table"))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return name, true
}

func items(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

func (h *handler) handleUpload(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	target := c.DefaultQuery("target", targetWebhook)
	if target != targetWebhook && target != targetStorage {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target must be webhook or storage"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("%w: request body exceeds %d bytes", upload.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select a file first"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	up := dashboard.Upload{
		Name:          fh.Filename,
		Size:          fh.Size,
		Content:       f,
		TriggeredFrom: c.DefaultPostForm("triggered_from", "dashboard"),
	}

	if target == targetStorage {
		file, err := h.svc.StoreUpload(c.Request.Context(), ownerID, up)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": fmt.Sprintf("Uploaded %s", file.FileName),
			"file":    file,
		})
		return
	}

	rows, err := h.svc.IngestUpload(c.Request.Context(), ownerID, up)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("File processed! Added %s", items(len(rows))),
		"rows":    rows,
	})
}

func (h *handler) handleManualLead(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	var req dashboard.ManualLead
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd, err := h.svc.AddManualLead(c.Request.Context(), ownerID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Lead added"
	switch req.Action {
	case dashboard.ActionScrape:
		message = "Scraping process started"
	case dashboard.ActionGenerateEmail:
		message = "Email generation started"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "update": upd})
}

func (h *handler) handleListFiles(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	files, err := h.svc.ListFiles(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *handler) handleGetFile(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	file, err := h.svc.GetFile(c.Request.Context(), ownerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": file})
}

func (h *handler) handleDownloadFile(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	file, rc, err := h.svc.DownloadFile(c.Request.Context(), ownerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.DataFromReader(http.StatusOK, file.FileSize, "text/csv", rc, nil)
}

func (h *handler) handleRenameFile(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	var req struct {
		FileName string `json:"file_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := h.svc.RenameFile(c.Request.Context(), ownerID, id, req.FileName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File renamed", "file": file})
}

func (h *handler) handleDeleteFile(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteFile(c.Request.Context(), ownerID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (h *handler) handleLoadDocument(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	opened, err := h.svc.LoadDocument(c.Request.Context(), ownerID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opened)
}

func (h *handler) handleSaveDocument(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	var req dashboard.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opened, err := h.svc.SaveDocument(c.Request.Context(), ownerID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File saved successfully", "file": opened.File, "document": opened.Document})
}

func (h *handler) handleEditDocument(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	id, ok := fileID(c)
	if !ok {
		return
	}
	var req struct {
		Edits []csvdoc.Edit `json:"edits" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opened, err := h.svc.EditDocument(c.Request.Context(), ownerID, id, req.Edits)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File saved successfully", "file": opened.File, "document": opened.Document})
}

func (h *handler) handleView(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	name, ok := tableName(c)
	if !ok {
		return
	}
	var filter leads.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.View(ownerID, name, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) handleToggle(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	name, ok := tableName(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid row index"})
		return
	}
	if err := h.svc.Toggle(ownerID, name, index); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, ownerID, name, leads.Filter{})
}

func (h *handler) handleSelectAll(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	name, ok := tableName(c)
	if !ok {
		return
	}
	if err := h.svc.SelectAll(ownerID, name); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, ownerID, name, leads.Filter{})
}

func (h *handler) handleToggleAll(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	name, ok := tableName(c)
	if !ok {
		return
	}
	var filter leads.Filter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.ToggleAll(ownerID, name, filter); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, ownerID, name, filter)
}

func (h *handler) handleClearSelection(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	name, ok := tableName(c)
	if !ok {
		return
	}
	if err := h.svc.ClearSelection(ownerID, name); err != nil {
		respondError(c, err)
		return
	}
	h.respondView(c, ownerID, name, leads.Filter{})
}

func (h *handler) respondView(c *gin.Context, ownerID uuid.UUID, name dashboard.TableName, filter leads.Filter) {
	view, err := h.svc.View(ownerID, name, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) handleAddToQueue(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	upd, err := h.svc.AddToQueue(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Successfully added %s to scrape queue", items(upd.Sent)),
		"update":  upd,
	})
}

func (h *handler) handleFetchQueue(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	upd, err := h.svc.FetchQueue(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "No results available yet"
	if len(upd.Rows) > 0 {
		message = fmt.Sprintf("Fetched %d results from scrape queue", len(upd.Rows))
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "update": upd})
}

func (h *handler) handleStartScraping(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	upd, err := h.svc.StartScraping(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Scraping process started successfully"
	if upd.Replaced {
		message = fmt.Sprintf("Updated %d results with scraping status", len(upd.Rows))
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "update": upd})
}

func (h *handler) handleRefreshResults(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	upd, err := h.svc.RefreshResults(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "No results available yet"
	if upd.Replaced {
		message = fmt.Sprintf("Refreshed %d results with scraped data", len(upd.Rows))
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "update": upd})
}

func (h *handler) handleGenerateEmail(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	upd, err := h.svc.GenerateEmail(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Email generation started"
	if upd.Replaced {
		message = fmt.Sprintf("Generated emails for %s", items(upd.Sent))
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "update": upd})
}
