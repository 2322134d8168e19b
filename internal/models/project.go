package models

import (
	"database/sql"
	"time"
)

type Project struct {
	ID            string         `json:"id" db:"id"`
	OwnerID       string         `json:"ownerId" db:"owner_id"`
	Name          string         `json:"name" db:"name"`
	Description   sql.NullString `json:"-" db:"description"`
	URL           sql.NullString `json:"-" db:"url"`
	WhyBuilt      sql.NullString `json:"-" db:"why_built"`
	ScreenshotURL sql.NullString `json:"-" db:"screenshot_url"`
	ProgressScore int            `json:"progressScore" db:"progress_score"`
	Listed        bool           `json:"listed" db:"listed"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
}

// ProjectView is the JSON shape returned to clients; nullable columns
// collapse to empty strings.
type ProjectView struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	URL           string    `json:"url,omitempty"`
	WhyBuilt      string    `json:"whyBuilt,omitempty"`
	ScreenshotURL string    `json:"screenshotUrl,omitempty"`
	ProgressScore int       `json:"progressScore"`
	Listed        bool      `json:"listed"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (p *Project) View() ProjectView {
	return ProjectView{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		Description:   p.Description.String,
		URL:           p.URL.String,
		WhyBuilt:      p.WhyBuilt.String,
		ScreenshotURL: p.ScreenshotURL.String,
		ProgressScore: p.ProgressScore,
		Listed:        p.Listed,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
