package model

import "time"

// JobCategoryID is the reserved category for job listings.  A listing has
// categoryId == JobCategoryID if and only if a Job row is paired with it;
// the two are always created and edited together.
const JobCategoryID uint64 = 1

// Listing status values.
const (
	StatusActive     = "ACTIVE"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
)

// Listing mirrors the `listings` table.  Tags are stored as a JSON
// array in a single column by the repository.  User, Job and Images
// are populated by eager-loading queries, never written through this
// struct.
type Listing struct {
	ID          uint64         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	City        string         `json:"city"`
	State       string         `json:"state"`
	Zipcode     string         `json:"zipcode"`
	CategoryID  uint64         `json:"categoryId"`
	CreatedUser string         `json:"createdUser"`
	IsDeleted   bool           `json:"isDeleted"`
	Tags        []string       `json:"tags"`
	Status      string         `json:"status"`
	CreatedDate time.Time      `json:"createdDate"`
	UpdatedDate time.Time      `json:"updatedDate"`
	User        *User          `json:"user,omitempty"`
	Job         *Job           `json:"job,omitempty"`
	Images      []ListingImage `json:"listingImages,omitempty"`
}

// Job mirrors the `job_listings` table: the rate range and date range
// that specialize a listing into a job posting.  listing_id is an
// exclusive 1:1 back-reference.
type Job struct {
	ID        uint64    `json:"id"`
	ListingID uint64    `json:"listingId"`
	MinRate   float64   `json:"minRate"`
	MaxRate   float64   `json:"maxRate"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// ListingImage mirrors the `listing_images` table.  URL points at the
// uploaded object in blob storage.
type ListingImage struct {
	ID        uint64 `json:"id"`
	ListingID uint64 `json:"listingId"`
	URL       string `json:"url"`
}

// ListingCategory mirrors the `listing_categories` table.  Category rows
// are reference data; the job-category guard uses the JobCategoryID
// constant rather than this table.
type ListingCategory struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}
