// Package artifacts persists generated images and their JSON sidecars into a
// date-partitioned tree inside the blob store, and knows how to find them
// again when the partition key is unknown at read time.
package artifacts

import (
	"fmt"
	"time"
)

// DateFolderLayout is the partition key format derived from an artifact's
// true upload timestamp.
const DateFolderLayout = "2006-01-02"

// MetadataStatus marks how far the two-phase artifact write progressed.
type MetadataStatus string

const (
	// MetadataPending is written before the image blob exists.
	MetadataPending MetadataStatus = "pending"
	// MetadataCommitted is flipped in once the image blob is durable.
	MetadataCommitted MetadataStatus = "committed"
)

// Metadata is the JSON sidecar stored next to every artifact image. The
// dateFolder recorded inside it is authoritative for pathing: readers trust
// it over the candidate folder they happened to find the sidecar under.
type Metadata struct {
	UserID        string         `json:"userId"`
	ArtifactID    string         `json:"artifactId"`
	DateFolder    string         `json:"dateFolder"`
	TemplateSlug  string         `json:"templateSlug"`
	CelebritySlug string         `json:"celebritySlug"`
	Timestamp     time.Time      `json:"timestamp"`
	Status        MetadataStatus `json:"status,omitempty"`
}

// ImagePath builds the storage path for an artifact image.
func ImagePath(userID, artifactID, dateFolder string) string {
	return fmt.Sprintf("users/%s/%s/%s.png", userID, dateFolder, artifactID)
}

// MetadataPath builds the storage path for an artifact's JSON sidecar. It
// must always share the image's dateFolder: the pair living in one folder is
// what makes later retrieval possible.
func MetadataPath(userID, artifactID, dateFolder string) string {
	return fmt.Sprintf("users/%s/%s/%s.json", userID, dateFolder, artifactID)
}

// CandidateDateFolders enumerates the partition keys a reader probes when
// the upload timestamp is unknown: today plus the preceding days-1 days,
// newest first. The bounded lookback trades completeness for request cost
// against the remote store; artifacts older than the window with a missing
// sidecar are unrecoverable through this scheme.
func CandidateDateFolders(now time.Time, days int) []string {
	if days < 1 {
		days = 1
	}
	folders := make([]string, 0, days)
	for i := 0; i < days; i++ {
		folders = append(folders, now.AddDate(0, 0, -i).Format(DateFolderLayout))
	}
	return folders
}
