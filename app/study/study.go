// Package study drives guided question-and-answer sessions over a learner's
// material, delegating question generation to a language model.
package study

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Elyes-Bali/UniProfs-UI/app/logging"
	"github.com/Elyes-Bali/UniProfs-UI/app/metrics"
	"github.com/Elyes-Bali/UniProfs-UI/app/models"
)

var (
	ErrConflict  = errors.New("study session already exists")
	ErrNotFound  = errors.New("study session not found")
	ErrTransient = errors.New("question generation failed")
	ErrEmpty     = errors.New("session id and text are required")
	ErrBusy      = errors.New("study session is busy")
)

// NextQuestionMarker separates the correction from the follow-up question
// in a tutor reply.
const NextQuestionMarker = "Next question:"

// SystemInstruction is the first turn of every session.
const SystemInstruction = `You are a study assistant. Follow these rules strictly:
1. Always ask only one question at a time.
2. Questions must be based on the material provided.
3. Do not ask multiple questions in a single response.
4. Wait for the student's answer before asking the next question.
5. Keep your responses concise and clear.
6. If the student provides an incorrect answer, gently correct them and explain why.
7. Use the context provided to generate relevant questions.
8. Avoid repeating questions already asked.
9. Ensure questions vary in difficulty to challenge the student.
10. Maintain a supportive and encouraging tone throughout the session.
11. After the student answers, give your feedback first, then write "` + NextQuestionMarker + `" followed by the next question.`

// Generator produces the next tutor turn from the full history.
type Generator interface {
	Generate(ctx context.Context, turns []models.Turn) (string, error)
}

// SessionStore persists sessions. Get returns ErrNotFound for unknown or
// expired ids; Create returns ErrConflict when the id is taken.
type SessionStore interface {
	Get(ctx context.Context, id string) (models.StudySession, error)
	Create(ctx context.Context, s models.StudySession) error
	Save(ctx context.Context, s models.StudySession) error
}

// Locker serializes turns of one session.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Reply is the result of answering a question.
type Reply struct {
	Correction string
	Question   string
}

// Controller runs session turns one at a time per session id.
type Controller struct {
	store   SessionStore
	gen     Generator
	locker  Locker
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewController returns a Controller storing sessions in store and
// serializing turns with locker.
func NewController(store SessionStore, gen Generator, locker Locker) *Controller {
	return &Controller{
		store:   store,
		gen:     gen,
		locker:  locker,
		now:     time.Now,
		metrics: metrics.Get(),
		logger:  logging.Component("study"),
	}
}

// Start opens a session over the learner's material and returns the
// opening question. Nothing is stored when generation fails.
func (c *Controller) Start(ctx context.Context, sessionID, material string) (question string, err error) {
	defer func() { c.metrics.RecordStudyTurn("start", outcome(err)) }()

	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(material) == "" {
		return "", ErrEmpty
	}

	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	if _, err := c.store.Get(ctx, sessionID); err == nil {
		return "", ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	now := c.now()
	session := models.StudySession{
		ID:      sessionID,
		Context: material,
		Turns: []models.Turn{
			{Role: models.TurnSystem, Content: SystemInstruction},
			{Role: models.TurnLearner, Content: material},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	question, err = c.generate(ctx, session.Turns)
	if err != nil {
		return "", err
	}
	session.Turns = append(session.Turns, models.Turn{Role: models.TurnTutor, Content: question})

	if err := c.store.Create(ctx, session); err != nil {
		return "", err
	}
	return question, nil
}

// Answer records the learner's answer, asks for feedback and the next
// question, and splits the reply. The history is unchanged when
// generation fails.
func (c *Controller) Answer(ctx context.Context, sessionID, answer string) (reply Reply, err error) {
	defer func() { c.metrics.RecordStudyTurn("answer", outcome(err)) }()

	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(answer) == "" {
		return Reply{}, ErrEmpty
	}

	unlock, err := c.locker.Lock(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	defer unlock()

	session, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	turns := make([]models.Turn, 0, len(session.Turns)+2)
	turns = append(turns, session.Turns...)
	turns = append(turns, models.Turn{Role: models.TurnLearner, Content: answer})

	text, err := c.generate(ctx, turns)
	if err != nil {
		return Reply{}, err
	}
	session.Turns = append(turns, models.Turn{Role: models.TurnTutor, Content: text})
	session.UpdatedAt = c.now()

	if err := c.store.Save(ctx, session); err != nil {
		return Reply{}, err
	}
	return SplitReply(text), nil
}

func (c *Controller) generate(ctx context.Context, turns []models.Turn) (string, error) {
	text, err := c.gen.Generate(ctx, turns)
	if err != nil {
		c.logger.Warn().Err(err).Int("turns", len(turns)).Msg("generation failed")
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return text, nil
}

// SplitReply cuts a tutor reply at the first NextQuestionMarker. Without
// the marker the whole reply is the question and the correction is empty.
func SplitReply(text string) Reply {
	before, after, found := strings.Cut(text, NextQuestionMarker)
	if !found {
		return Reply{Question: strings.TrimSpace(text)}
	}
	return Reply{
		Correction: strings.TrimSpace(before),
		Question:   strings.TrimSpace(after),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "error"
	}
}
