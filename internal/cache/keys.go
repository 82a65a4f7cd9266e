package cache

import "fmt"

func RateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}

// AnalysisChannel is the Pub/Sub channel carrying updates to one analysis record.
func AnalysisChannel(feedbackID string) string {
	return fmt.Sprintf("analysis:%s", feedbackID)
}

func InstalledModelsKey(baseURL string) string {
	return fmt.Sprintf("ai:models:%s", baseURL)
}
