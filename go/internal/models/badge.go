package models

import "time"

// Well-known badge keys.
const (
	BadgeEarlyBird     = "early_bird"
	BadgeFocusMaster10 = "focus_master_10"
	BadgeConsistency7  = "consistency_7"
)

// Badge is a durable achievement flag definition.
type Badge struct {
	ID          int    `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// UserBadge records a badge awarded to a user. Awards are idempotent: a
// badge already owned is never awarded again.
type UserBadge struct {
	UserID    string    `json:"userId"`
	BadgeID   int       `json:"badgeId"`
	AwardedAt time.Time `json:"awardedAt"`
}
