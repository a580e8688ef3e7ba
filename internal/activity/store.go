package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Record is one stored activity row.
type Record struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Type       Type      `gorm:"type:varchar(32);index;not null"`
	UserKey    string    `gorm:"type:varchar(191);index;not null"`
	SessionID  string    `gorm:"type:varchar(26);index"`
	Count      int       `gorm:"not null;default:0"`
	Detail     string    `gorm:"type:varchar(255)"`
	At         time.Time `gorm:"index;not null"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (Record) TableName() string { return "activities" }

var ErrMalformed = errors.New("malformed activity")

// Decode parses a queued message body.
func Decode(body []byte) (Activity, error) {
	var a Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return Activity{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if a.Type == "" || a.UserKey == "" {
		return Activity{}, fmt.Errorf("%w: type and user_key are required", ErrMalformed)
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	return a, nil
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Record{})
}

func (s *Store) Save(ctx context.Context, a Activity) error {
	return s.db.WithContext(ctx).Create(&Record{
		Type:       a.Type,
		UserKey:    a.UserKey,
		SessionID:  a.SessionID,
		Count:      a.Count,
		Detail:     a.Detail,
		At:         a.At.UTC(),
		ReceivedAt: time.Now().UTC(),
	}).Error
}

// Total aggregates one activity type: how many events arrived and the sum
// of their counts.
type Total struct {
	Events int
	Count  int
}

func (s *Store) Totals(ctx context.Context, userKey string) (map[Type]Total, error) {
	var rows []struct {
		Type   Type
		Events int
		Count  int
	}
	err := s.db.WithContext(ctx).Model(&Record{}).
		Select("type, COUNT(*) AS events, COALESCE(SUM(count), 0) AS count").
		Where("user_key = ?", userKey).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[Type]Total, len(rows))
	for _, r := range rows {
		out[r.Type] = Total{Events: r.Events, Count: r.Count}
	}
	return out, nil
}
