package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// flexID accepts a JSON string or number; Telegram ids arrive as both
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// factCheckRequest accepts both the bot's field names and the API's
type factCheckRequest struct {
	Claim       string `json:"claim"`
	Message     string `json:"message"`
	ChatID      flexID `json:"chatId"`
	GroupID     flexID `json:"groupId"`
	UserID      flexID `json:"userId"`
	DisplayName string `json:"displayName"`
	ChatName    string `json:"chat_name"`
	MessageID   flexID `json:"messageId"`
	Platform    string `json:"platform"`
}

func (r factCheckRequest) claim() string {
	if c := strings.TrimSpace(r.Claim); c != "" {
		return c
	}
	return strings.TrimSpace(r.Message)
}

// chatID prefers an explicit chat, then the group, then the sender
func (r factCheckRequest) chatID() string {
	for _, id := range []flexID{r.ChatID, r.GroupID, r.UserID} {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

func (r factCheckRequest) displayName() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.ChatName
}

type factCheckResponse struct {
	Success     bool          `json:"success"`
	Reused      bool          `json:"reused"`
	Regenerated bool          `json:"regenerated"`
	Broadcasted bool          `json:"broadcasted"`
	Reply       string        `json:"reply"`
	Verdict     model.Verdict `json:"verdict"`
	RumourID    string        `json:"rumourId,omitempty"`
	Count       int           `json:"count"`
	ToolCalls   int           `json:"toolCalls"`
}
