package app

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Elyes-Bali/UniProfs-UI/app/models"
	"github.com/Elyes-Bali/UniProfs-UI/app/study"
	"github.com/Elyes-Bali/UniProfs-UI/auth"
)

// StartStudy opens a session from a JSON prompt or an uploaded PDF.
func (s *Server) StartStudy(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.StudyStartRequest

	material := ""
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUpload)
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "invalid form")
			return
		}
		material = req.Prompt
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				respondInternal(c, err, "open upload failed")
				return
			}
			text, err := s.Documents.ExtractText(ctx, f)
			_ = f.Close()
			if err != nil {
				respondInternal(c, err, "extract study material failed")
				return
			}
			material = text
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "invalid request body")
		return
	} else {
		material = req.Prompt
	}

	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(material) == "" {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "sessionId and prompt or file are required")
		return
	}

	question, err := s.Study.Start(ctx, sessionKey(c, req.SessionID), material)
	if err != nil {
		s.respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StudyStartResponse{
		Message:  "Study session started",
		Question: question,
	})
}

// AnswerStudy submits an answer and returns feedback plus the next question.
func (s *Server) AnswerStudy(c *gin.Context) {
	var req models.StudyAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, "sessionId and answer are required")
		return
	}

	reply, err := s.Study.Answer(c.Request.Context(), sessionKey(c, req.SessionID), req.Answer)
	if err != nil {
		s.respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StudyAnswerResponse{
		Correction: reply.Correction,
		Question:   reply.Question,
	})
}

// sessionKey scopes client session ids to the caller so accounts cannot
// reach each other's sessions.
func sessionKey(c *gin.Context, sessionID string) string {
	return auth.AccountID(c.Request.Context()) + ":" + strings.TrimSpace(sessionID)
}

func (s *Server) respondStudyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, study.ErrEmpty):
		respondError(c, http.StatusBadRequest, models.CodeInvalidRequest, err.Error())
	case errors.Is(err, study.ErrConflict):
		respondError(c, http.StatusConflict, models.CodeSessionExists, "Study session already exists")
	case errors.Is(err, study.ErrNotFound):
		respondError(c, http.StatusNotFound, models.CodeSessionNotFound, "Session not found")
	case errors.Is(err, study.ErrBusy):
		respondError(c, http.StatusConflict, models.CodeSessionBusy, "Another answer for this session is still being processed")
	default:
		respondInternal(c, err, "study turn failed")
	}
}
