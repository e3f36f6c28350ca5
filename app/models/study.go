package models

import "time"

type TurnRole string

const (
	TurnSystem  TurnRole = "system"
	TurnTutor   TurnRole = "tutor"
	TurnLearner TurnRole = "learner"
)

// Turn is one message of a guided study dialogue.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// StudySession is the dialogue state for one session id.
type StudySession struct {
	ID        string    `json:"id"`
	Context   string    `json:"context"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
