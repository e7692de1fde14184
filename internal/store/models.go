package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultPlatform is stored for chats that do not name their platform
const DefaultPlatform = "telegram"

// Chat is a group or private conversation that has sent at least one message
type Chat struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    string    `gorm:"column:chat_id;not null;uniqueIndex" json:"chat_id"`
	ChatName  string    `gorm:"column:chat_name" json:"chat_name,omitempty"`
	Platform  string    `gorm:"column:platform;not null;default:telegram" json:"platform"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Chat) TableName() string { return "app_chat" }

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Rumour is the first sighting of a normalized claim together with its verdict snapshot
type Rumour struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ChatTableID     *uuid.UUID     `gorm:"type:uuid;column:chat_table_id;index" json:"chat_table_id,omitempty"`
	MsgContent      string         `gorm:"column:msg_content" json:"msg_content"`
	Embedding       datatypes.JSON `gorm:"column:embedding" json:"embedding,omitempty"`
	Status          string         `gorm:"column:status" json:"status"`
	FactCheckSource string         `gorm:"column:fact_check_source" json:"fact_check_source,omitempty"`
	FactCheckResult datatypes.JSON `gorm:"column:fact_check_result" json:"fact_check_result"`
	SourceLink      string         `gorm:"column:source_link" json:"source_link,omitempty"`
	RiskScore       int            `gorm:"column:risk_score" json:"risk_score"`
	RumourLocation  string         `gorm:"column:rumour_location" json:"rumour_location,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at;index" json:"created_at"`
}

func (Rumour) TableName() string { return "app_rumour" }

func (r *Rumour) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RumourMatch tracks how often a normalized claim has been seen and whether
// the repeat broadcast has gone out
type RumourMatch struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Similarity  float64    `gorm:"column:similarity" json:"similarity"`
	Count       int        `gorm:"column:count;not null;default:1" json:"count"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	RumourID    *uuid.UUID `gorm:"type:uuid;column:rumour_id;index" json:"rumour_id,omitempty"`
	Normalized  string     `gorm:"column:normalized;not null;uniqueIndex" json:"normalized"`
	Broadcasted bool       `gorm:"column:broadcasted;not null;default:false" json:"broadcasted"`
}

func (RumourMatch) TableName() string { return "app_rumour_match" }

func (m *RumourMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageLog is the append-only record of one inbound message and the reply it got
type MessageLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ChatTableID uuid.UUID  `gorm:"type:uuid;column:chat_table_id;not null;index" json:"chat_table_id"`
	RumourID    *uuid.UUID `gorm:"type:uuid;column:rumour_id;index" json:"rumour_id,omitempty"`
	MessageID   string     `gorm:"column:message_id" json:"message_id,omitempty"`
	Content     string     `gorm:"column:content" json:"content"`
	AIResponse  string     `gorm:"column:ai_response" json:"ai_response"`
	Processed   bool       `gorm:"column:processed" json:"processed"`
	CreatedAt   time.Time  `gorm:"column:created_at;index" json:"created_at"`
}

func (MessageLog) TableName() string { return "app_message_log" }

func (l *MessageLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// AllModels lists every table for migration
func AllModels() []interface{} {
	return []interface{}{&Chat{}, &Rumour{}, &RumourMatch{}, &MessageLog{}}
}
