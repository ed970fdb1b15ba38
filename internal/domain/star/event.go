package star

import (
	"time"
)

type EventType string

const (
	EventMinted         EventType = "Minted"
	EventTransferred    EventType = "Transfer"
	EventApproval       EventType = "Approval"
	EventApprovalForAll EventType = "ApprovalForAll"
	EventSold           EventType = "Sold"
)

type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	StarID   int64     `json:"star_id,omitempty"`
	From     Account   `json:"from,omitempty"`
	To       Account   `json:"to,omitempty"`
	Approved bool      `json:"approved,omitempty"`
	Amount   Amount    `json:"amount,omitempty"`
	At       time.Time `json:"at"`
}
