package chat

import (
	"strings"
	"time"

	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

type User struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement"`
	Email        string          `gorm:"type:varchar(191);uniqueIndex;not null"`
	FullName     string          `gorm:"type:varchar(128)"`
	PasswordHash string          `gorm:"type:varchar(100);not null"`
	Tier         tokenstore.Tier `gorm:"type:varchar(16);not null;default:'free'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

type Session struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"type:varchar(26);uniqueIndex;not null"`
	UserID    uint64 `gorm:"index;not null"`
	// comma separated participant names, in the order they were chosen
	Participants string `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
	// UpdatedAt moves on every broadcast; history sorts on it.
	UpdatedAt time.Time `gorm:"index"`
}

func (Session) TableName() string { return "debate_sessions" }

func (s Session) ParticipantList() []string {
	return splitList(s.Participants)
}

type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"type:varchar(26);not null;index:idx_debate_msg_user_session,priority:2"`
	UserID    uint64 `gorm:"not null;index:idx_debate_msg_user_session,priority:1"`
	Role      string `gorm:"type:varchar(16);not null"`
	AIName    string `gorm:"type:varchar(32);index"`
	Content   string `gorm:"type:text;not null"`
	// newline separated
	KeyTakeaways string `gorm:"type:text"`
	CreatedAt    time.Time
}

func (Message) TableName() string { return "debate_messages" }

func (m Message) TakeawayList() []string {
	if m.KeyTakeaways == "" {
		return nil
	}
	return strings.Split(m.KeyTakeaways, "\n")
}

type Digest struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	UserID       uint64 `gorm:"not null;uniqueIndex:uniq_digest_user_date,priority:1"`
	Date         string `gorm:"type:varchar(10);not null;uniqueIndex:uniq_digest_user_date,priority:2"`
	Summary      string `gorm:"type:text;not null"`
	Highlights   string `gorm:"type:text"`
	SessionCount int
	MessageCount int
	GeneratedAt  time.Time `gorm:"index"`
}

func (Digest) TableName() string { return "daily_digests" }

func (d Digest) HighlightList() []string {
	if d.Highlights == "" {
		return nil
	}
	return strings.Split(d.Highlights, "\n")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Models lists every table the dev backend migrates.
func Models() []any {
	return []any{&User{}, &Session{}, &Message{}, &Digest{}, &Checkout{}}
}
