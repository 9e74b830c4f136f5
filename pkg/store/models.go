package store

import "time"

// Submission is the central entity: one piece of archived content and its
// metadata. The url is the natural key assigned at discovery time; SubmissionID
// stays nil until the metadata harvester has seen the detail page.
type Submission struct {
	URL          string `gorm:"column:url;primaryKey;size:512"`
	SubmissionID *int64 `gorm:"column:submission_id;uniqueIndex"`

	Title       string `gorm:"column:title;size:512"`
	Description string `gorm:"column:description;type:text"`
	Tags        string `gorm:"column:tags;type:text"`

	Username    string `gorm:"column:username;size:128;index"`
	AccountName string `gorm:"column:account_name;size:128"`

	ContentURL    string `gorm:"column:content_url;size:512"`
	ContentName   string `gorm:"column:content_name;size:256"`
	ThumbnailURL  string `gorm:"column:thumbnail_url;size:512"`
	ThumbnailName string `gorm:"column:thumbnail_name;size:256"`

	DateUploaded string `gorm:"column:date_uploaded;size:64"`
	Rating       string `gorm:"column:rating;size:32"`
	Category     string `gorm:"column:category;size:64"`

	IsScrap          bool   `gorm:"column:is_scrap"`
	IsFavorite       bool   `gorm:"column:is_favorite"`
	FavoriteUsername string `gorm:"column:favorite_username;size:128"`

	IsContentSaved   bool `gorm:"column:is_content_saved;index"`
	IsThumbnailSaved bool `gorm:"column:is_thumbnail_saved"`
	ContentMissing   bool `gorm:"column:content_missing"`
	ThumbnailMissing bool `gorm:"column:thumbnail_missing"`
	MovedContent     bool `gorm:"column:moved_content"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Submission) TableName() string {
	return "submissions"
}

// Harvested reports whether metadata has been harvested for this submission
func (s *Submission) Harvested() bool {
	return s.SubmissionID != nil
}

// Comment is one comment on a submission. Anchor ids are only unique within
// one page, so the key is composite over submission and anchor.
// Re-harvesting a page updates description and date, never duplicates.
type Comment struct {
	SubmissionID int64  `gorm:"column:submission_id;primaryKey;autoIncrement:false"`
	AnchorID     string `gorm:"column:anchor_id;primaryKey;size:64"`
	Username     string `gorm:"column:username;size:128"`
	Description  string `gorm:"column:description;type:text"`
	DatePosted   string `gorm:"column:date_posted;size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Comment) TableName() string {
	return "comments"
}

// Favorite links a downloading user to a submission url, unique per pair
type Favorite struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"column:username;size:128;uniqueIndex:idx_favorites_user_url"`
	URL      string `gorm:"column:url;size:512;uniqueIndex:idx_favorites_user_url"`

	CreatedAt time.Time
}

func (Favorite) TableName() string {
	return "favorites"
}

// OwnedAccount is a username the operator controls; owned galleries get walked
type OwnedAccount struct {
	Username string `gorm:"column:username;primaryKey;size:128"`

	CreatedAt time.Time
}

func (OwnedAccount) TableName() string {
	return "owned_accounts"
}

// Settings is the single-row settings record
type Settings struct {
	ID              uint       `gorm:"primaryKey"`
	RootDirectory   string     `gorm:"column:root_directory;size:512"`
	LastWalkAt      *time.Time `gorm:"column:last_walk_at"`
	LastReconcileAt *time.Time `gorm:"column:last_reconcile_at"`

	UpdatedAt time.Time
}

func (Settings) TableName() string {
	return "settings"
}
