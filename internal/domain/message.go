package domain

import "time"

// Message is a free-text note exchanged over an accepted connection.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ConnectionID: the accepted connection the message belongs to (indexed).
//   - SenderID: author; always one of the connection's parties.
//   - Content: message body.
//   - Connection: FK association; messages are removed with their connection.
type Message struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	ConnectionID string    `json:"connection_id" gorm:"type:char(36);not null;index:idx_connection_msgs,priority:1"`
	SenderID     string    `json:"sender_id"     gorm:"type:varchar(64);not null"`
	Content      string    `json:"content"       gorm:"type:text;not null"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_connection_msgs,priority:2"`
	UpdatedAt    time.Time `json:"updated_at"`

	Connection Connection `json:"-" gorm:"foreignKey:ConnectionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
