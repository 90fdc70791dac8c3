package notify

import (
	"fmt"
	"log"

	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/config"
)

// Setup builds the notifiers enabled in cfg. feed is nil when Redis is not configured.
func Setup(cfg *config.Config) (notifiers []alert.Notifier, feed *Feed, err error) {
	if cfg.RedisAddr != "" {
		feed, err = NewFeed(cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to alert feed: %w", err)
		}
		notifiers = append(notifiers, feed)
		log.Printf("[notify] Publishing alerts to Redis at %s", cfg.RedisAddr)
	}

	if cfg.EmailEnabled() {
		email, err := NewEmail(EmailConfig{
			APIKey:      cfg.SendGridAPIKey,
			FromName:    cfg.FromName,
			FromAddress: cfg.FromAddress,
			To:          cfg.AlertEmailTo,
			GuidanceDir: cfg.GuidanceDir,
		})
		if err != nil {
			if feed != nil {
				_ = feed.Close()
			}
			return nil, nil, err
		}
		notifiers = append(notifiers, email)
		log.Printf("[notify] Emailing alerts to %s", cfg.AlertEmailTo)
	}

	return notifiers, feed, nil
}
