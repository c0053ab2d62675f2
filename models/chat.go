package models

import "time"

type ChatRequest struct {
	Query  string `json:"query"`
	Domain string `json:"domain"`
}

// ChatMessage is one question/answer exchange with the LLM, kept as history.
type ChatMessage struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Domain    string    `json:"domain,omitempty" bson:"domain,omitempty"`
	Query     string    `json:"query" bson:"query"`
	Response  string    `json:"response" bson:"response"`
	Status    bool      `json:"status" bson:"status"`
	Error     string    `json:"error,omitempty" bson:"error,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
