package domain

import "time"

// User is the directory's view of a member. Only the id matters to the
// connection lifecycle; the display name is kept for seeding and listings.
type User struct {
	ID          string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Post is a listing owned by exactly one user. Inactive posts cannot receive
// new connection requests.
type Post struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	OwnerID   string    `json:"owner_id"   gorm:"type:varchar(64);not null;index"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null;default:''"`
	Active    bool      `json:"active"     gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner User `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }
