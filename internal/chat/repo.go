package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(Models()...)
}

// users

func (r *Repo) CreateUser(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByID(ctx context.Context, id uint64) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) CountUsersByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&n).Error
	return n, err
}

// sessions

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns the user's sessions, most recently active first.
func (r *Repo) ListSessions(ctx context.Context, userID uint64) ([]Session, error) {
	var out []Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

// messages

// ListMessages returns the whole session in ASC id order (append order).
func (r *Repo) ListMessages(ctx context.Context, userID uint64, sessionID string) ([]Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

// ListRecentMessagesDesc returns the most recent messages in DESC id order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, userID uint64, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendTurn stores the prompt and its replies and touches the session, all
// or nothing.
func (r *Repo) AppendTurn(ctx context.Context, sess *Session, msgs []*Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range msgs {
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Session{}).
			Where("id = ?", sess.ID).
			Update("updated_at", time.Now()).Error
	})
}

type DayActivity struct {
	SessionCount int64
	MessageCount int64
	Takeaways    []string
}

// ActivitySince aggregates the user's messages created at or after since.
func (r *Repo) ActivitySince(ctx context.Context, userID uint64, since time.Time) (DayActivity, error) {
	var out DayActivity
	db := r.db.WithContext(ctx)

	if err := db.Model(&Message{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Distinct("session_id").
		Count(&out.SessionCount).Error; err != nil {
		return out, err
	}
	if err := db.Model(&Message{}).
		Where("user_id = ? AND created_at >= ? AND role = ?", userID, since, "user").
		Count(&out.MessageCount).Error; err != nil {
		return out, err
	}

	var withTakeaways []Message
	if err := db.
		Where("user_id = ? AND created_at >= ? AND key_takeaways <> ''", userID, since).
		Order("id DESC").
		Limit(50).
		Find(&withTakeaways).Error; err != nil {
		return out, err
	}
	for _, m := range withTakeaways {
		for _, t := range m.TakeawayList() {
			out.Takeaways = append(out.Takeaways, m.AIName+": "+t)
		}
	}
	return out, nil
}

// digests

func (r *Repo) UpsertDigest(ctx context.Context, d *Digest) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "highlights", "session_count", "message_count", "generated_at"}),
	}).Create(d).Error
}

func (r *Repo) LatestDigest(ctx context.Context, userID uint64) (*Digest, error) {
	var d Digest
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("generated_at DESC").
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// checkouts

func (r *Repo) CreateCheckout(ctx context.Context, c *Checkout) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// CompleteCheckout marks a pending checkout paid and moves its user to the
// purchased tier. Completing an already paid checkout is a no-op.
func (r *Repo) CompleteCheckout(ctx context.Context, id string) (*Checkout, error) {
	var c Checkout
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return err
		}
		if c.Status == CheckoutPaid {
			return nil
		}
		now := time.Now()
		if err := tx.Model(&Checkout{}).
			Where("id = ? AND status = ?", id, CheckoutPending).
			Updates(map[string]any{"status": CheckoutPaid, "paid_at": now}).Error; err != nil {
			return err
		}
		c.Status = CheckoutPaid
		c.PaidAt = &now
		return tx.Model(&User{}).Where("id = ?", c.UserID).Update("tier", c.Tier).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IsDuplicate reports whether err is a unique constraint violation on
// sqlite or mysql.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}
