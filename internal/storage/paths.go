package storage

import "fmt"

// Blob keys follow {ownerID}/{jobID}/{artifact} so one prefix delete removes
// everything a job owns.

// OriginalPath is the key for the uploaded document.
func OriginalPath(ownerID, jobID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", ownerID, jobID, filename)
}

// PagePath is the key for one rasterized page image. Pages are 1-based and
// zero-padded so lexical order matches page order.
func PagePath(ownerID, jobID string, pageNumber int) string {
	return fmt.Sprintf("%s/%s/pages/page-%04d.jpg", ownerID, jobID, pageNumber)
}

// ThumbnailPath is the key for the first-page thumbnail.
func ThumbnailPath(ownerID, jobID string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg", ownerID, jobID)
}

// JobPrefix is the common prefix of every artifact a job owns.
func JobPrefix(ownerID, jobID string) string {
	return fmt.Sprintf("%s/%s/", ownerID, jobID)
}
