// Package scheduler runs periodic background jobs of the API server.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Kaung2240/VoteX/metrics"
	"github.com/Kaung2240/VoteX/models"
	"github.com/Kaung2240/VoteX/tally"
)

// Notifier tells users who favorited an event when voting opens, and
// reminds the ones who have not voted shortly before it closes.
type Notifier struct {
	db       *gorm.DB
	interval time.Duration
	lead     time.Duration
	logger   zerolog.Logger
	busy     atomic.Bool

	Now func() time.Time
}

func NewNotifier(db *gorm.DB, interval, lead time.Duration, logger zerolog.Logger) *Notifier {
	return &Notifier{
		db:       db,
		interval: interval,
		lead:     lead,
		logger:   logger,
		Now:      time.Now,
	}
}

// Run checks events once immediately and then every interval. It blocks
// until ctx is canceled and always returns nil.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.tryRun(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.tryRun(ctx)
		}
	}
}

func (n *Notifier) tryRun(ctx context.Context) {
	if !n.busy.CompareAndSwap(false, true) {
		return
	}
	defer n.busy.Store(false)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := n.RunOnce(ctx); err != nil && ctx.Err() == nil {
		n.logger.Error().Err(err).Msg("notification run failed")
	}
}

// RunOnce sends due start notifications and reminders.
func (n *Notifier) RunOnce(ctx context.Context) error {
	now := n.Now().UTC()
	if err := n.notifyStarted(ctx, now); err != nil {
		return err
	}
	return n.remindClosing(ctx, now)
}

func (n *Notifier) notifyStarted(ctx context.Context, now time.Time) error {
	var events []models.VotingEvent
	err := n.db.WithContext(ctx).
		Where("start_time <= ? AND start_notified_at IS NULL", now).
		Find(&events).Error
	if err != nil {
		return fmt.Errorf("find started events: %w", err)
	}

	for _, event := range events {
		// Events that ended while nobody was watching are only marked.
		var recipients []uint
		if event.EndTime.After(now) {
			if err := n.db.WithContext(ctx).Model(&models.Favorite{}).
				Where("event_id = ?", event.ID).
				Pluck("user_id", &recipients).Error; err != nil {
				return fmt.Errorf("load favoriters of event %d: %w", event.ID, err)
			}
		}
		msg := fmt.Sprintf("Voting has started for %s", event.EventName)
		sent, err := n.deliver(ctx, event.ID, "start_notified_at", now, models.NotificationEventStart, msg, recipients)
		if err != nil {
			return err
		}
		if sent > 0 {
			n.logger.Info().Uint("event_id", event.ID).Int("recipients", sent).Msg("event start notified")
		}
	}
	return nil
}

func (n *Notifier) remindClosing(ctx context.Context, now time.Time) error {
	var events []models.VotingEvent
	err := n.db.WithContext(ctx).
		Where("start_time <= ? AND end_time > ? AND end_time <= ? AND reminder_sent_at IS NULL", now, now, now.Add(n.lead)).
		Find(&events).Error
	if err != nil {
		return fmt.Errorf("find closing events: %w", err)
	}

	for _, event := range events {
		voters := n.db.Model(&models.Vote{}).Select("voter_id").Where("voting_event_id = ?", event.ID)
		var recipients []uint
		if err := n.db.WithContext(ctx).Model(&models.Favorite{}).
			Where("event_id = ? AND user_id NOT IN (?)", event.ID, voters).
			Pluck("user_id", &recipients).Error; err != nil {
			return fmt.Errorf("load reminder recipients of event %d: %w", event.ID, err)
		}
		msg := fmt.Sprintf("Voting for %s ends in %s. You have not voted yet.", event.EventName, tally.FormatRemaining(event.EndTime.Sub(now)))
		sent, err := n.deliver(ctx, event.ID, "reminder_sent_at", now, models.NotificationEventReminder, msg, recipients)
		if err != nil {
			return err
		}
		if sent > 0 {
			n.logger.Info().Uint("event_id", event.ID).Int("recipients", sent).Msg("event reminder sent")
		}
	}
	return nil
}

// deliver sets the marker column and creates the notifications in one
// transaction. The marker is claimed with a conditional update so that two
// server instances never notify the same event twice.
func (n *Notifier) deliver(ctx context.Context, eventID uint, marker string, now time.Time, kind, msg string, recipients []uint) (int, error) {
	sent := 0
	err := n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.VotingEvent{}).
			Where("id = ? AND "+marker+" IS NULL", eventID).
			Update(marker, now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || len(recipients) == 0 {
			return nil
		}
		notifications := make([]models.Notification, 0, len(recipients))
		for _, userID := range recipients {
			notifications = append(notifications, models.Notification{
				UserID:           userID,
				NotificationType: kind,
				Message:          msg,
				RelatedEventID:   &eventID,
			})
		}
		if err := tx.Create(&notifications).Error; err != nil {
			return err
		}
		sent = len(notifications)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deliver %s for event %d: %w", kind, eventID, err)
	}
	metrics.NotificationsSent.WithLabelValues(kind).Add(float64(sent))
	return sent, nil
}
