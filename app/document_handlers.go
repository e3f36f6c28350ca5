package app

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

const improvedCVName = "Improved-CV.pdf"

// Summarize streams summarization progress and the final summary as
// server-sent events. Errors after the stream has started are sent as an
// "error" event.
func (s *Server) Summarize(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	sendError := func(message string) {
		c.SSEvent("error", gin.H{"message": message})
		c.Writer.Flush()
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUpload)
	upload, err := c.FormFile("pdf")
	if err != nil {
		sendError("PDF required")
		return
	}

	settings := models.SummarizeSettings{
		Focus:    models.DefaultSummaryFocus,
		Language: models.DefaultSummaryLanguage,
	}
	if raw := c.PostForm("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			sendError("invalid settings")
			return
		}
	}

	f, err := upload.Open()
	if err != nil {
		logger.Error().Err(err).Msg("open upload failed")
		sendError("Internal server error.")
		return
	}
	defer f.Close()

	summary, err := s.Documents.Summarize(ctx, f, settings, func(progress int) {
		c.SSEvent("progress", gin.H{"progress": progress})
		c.Writer.Flush()
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info().Msg("client disconnected during summarize")
			return
		}
		logger.Error().Err(err).Msg("summarize failed")
		sendError("Failed to summarize PDF")
		return
	}
	event := gin.H{"summary": summary}
	if verdict, ok := verdictFromContext(c); ok {
		event["remainingFree"] = verdict.RemainingFree
	}
	c.SSEvent("summary", event)
	c.Writer.Flush()
}

// ImproveCV rewrites an uploaded CV and returns the result as a download.
func (s *Server) ImproveCV(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUpload)
	upload, err := c.FormFile("pdf")
	if err != nil {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "PDF required")
		return
	}

	out, err := s.improve(c, upload)
	if err != nil {
		respondInternal(c, err, "improve cv failed")
		return
	}
	defer func() {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(ctx).Warn().Err(err).Str("path", out).Msg("failed to remove generated cv")
		}
	}()

	c.FileAttachment(out, improvedCVName)
}

func (s *Server) improve(c *gin.Context, upload *multipart.FileHeader) (string, error) {
	f, err := upload.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.Documents.ImproveCV(c.Request.Context(), f)
}
