package gifbox

import (
	"time"

	"github.com/google/uuid"
)

// Bucket is a logical namespace inside the blob store.
type Bucket string

const (
	BucketPosts   Bucket = "posts"
	BucketAvatars Bucket = "avatars"
)

// Valid reports whether b is one of the known namespaces.
func (b Bucket) Valid() bool {
	return b == BucketPosts || b == BucketAvatars
}

const (
	CanonicalExtension = "webp"
	CanonicalMimeType  = "image/webp"
)

// FileInformation describes a stored canonical object. Hash is an integrity
// tag over the stored bytes; it is never used to address the blob.
type FileInformation struct {
	ID               uuid.UUID `json:"id"`
	FileName         string    `json:"fileName"`
	OriginalFileName string    `json:"originalFileName"`
	Extension        string    `json:"extension"`
	Bucket           Bucket    `json:"bucket"`
	MimeType         string    `json:"mimeType"`
	UploadDate       time.Time `json:"uploadDate"`
	Author           uuid.UUID `json:"author"`
	Size             int64     `json:"size"`
	ContentHash      string    `json:"contentHash"`
}

// Post is the metadata record for an uploaded image.
type Post struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Author    uuid.UUID       `json:"author"`
	Tags      []string        `json:"tags"`
	File      FileInformation `json:"file"`
	Private   bool            `json:"private"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SearchDocument returns the projection mirrored into the search index.
func (p *Post) SearchDocument() SearchDocument {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return SearchDocument{
		ID:        p.ID.String(),
		Title:     p.Title,
		Slug:      p.Slug,
		Author:    p.Author.String(),
		Tags:      tags,
		CreatedAt: p.CreatedAt.Unix(),
		Private:   p.Private,
	}
}

// User is owned by the account subsystem and only read here.
type User struct {
	ID             uuid.UUID        `json:"id"`
	Username       string           `json:"username"`
	DisplayName    string           `json:"displayName"`
	Email          string           `json:"email"`
	HashedPassword string           `json:"-"`
	Description    string           `json:"description"`
	Verified       bool             `json:"verified"`
	Avatar         *FileInformation `json:"avatar"`
	Followers      []uuid.UUID      `json:"followers"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Author is the public projection of a User. Email and password hash are
// never part of it.
type Author struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Description   string    `json:"description"`
	Verified      bool      `json:"verified"`
	Avatar        *string   `json:"avatar"`
	FollowerCount int       `json:"followerCount"`
}

// Projection returns the whitelisted public view of u.
func (u *User) Projection() *Author {
	a := &Author{
		ID:            u.ID,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		Description:   u.Description,
		Verified:      u.Verified,
		FollowerCount: len(u.Followers),
	}
	if u.Avatar != nil {
		name := u.Avatar.FileName
		a.Avatar = &name
	}
	return a
}

// PostView is a Post as returned to clients: author resolved, engagement
// counters attached.
type PostView struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Author    *Author         `json:"author"`
	Tags      []string        `json:"tags"`
	File      FileInformation `json:"file"`
	Private   bool            `json:"private"`
	CreatedAt time.Time       `json:"createdAt"`
	Favorites int64           `json:"favorites"`
	Views     int64           `json:"views"`
}

func newPostView(p *Post, author *Author, views int64) *PostView {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return &PostView{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Author:    author,
		Tags:      tags,
		File:      p.File,
		Private:   p.Private,
		CreatedAt: p.CreatedAt,
		Views:     views,
	}
}

// SearchDocument is the index-side projection of a Post. CreatedAt is unix
// seconds so the index can filter and sort on it numerically.
type SearchDocument struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	Author    string   `json:"author"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"createdAt"`
	Private   bool     `json:"private"`
}

// SearchQuery is what the service hands to a SearchIndex. Implementations
// must restrict results to public documents regardless of the other fields.
type SearchQuery struct {
	Text          string
	Author        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Sort          string
	Offset        int
	Limit         int
}

// SearchHits is a page of matching post ids. When Approximate is true,
// EstimatedTotalHits is an estimate and must not be presented as exact.
type SearchHits struct {
	IDs                []string
	EstimatedTotalHits int64
	Approximate        bool
}

// SearchPage is the resolved result returned by Service.SearchPosts.
type SearchPage struct {
	Hits               []*PostView `json:"hits"`
	EstimatedTotalHits int64       `json:"estimatedTotalHits"`
	Approximate        bool        `json:"approximate"`
	Offset             int         `json:"offset"`
	Limit              int         `json:"limit"`
}

// FileObject is a stored blob together with the metadata that references it.
type FileObject struct {
	Info FileInformation
	Data []byte
}
