package session

// EstimateTokens estimates the token count for text using a chars/4
// approximation. Actual tokenization varies by model; the figure is only
// used for cost and stat display when the provider reports no usage.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
