package cache

import "fmt"

func JobSnapshotKey(analysisID string) string {
	return fmt.Sprintf("bioverify:job:%s", analysisID)
}

func EvidenceKey(analysisID string) string {
	return fmt.Sprintf("bioverify:evidence:%s", analysisID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
