// Package classify decides which usage category an inbound message falls
// into. The keyword heuristic is deliberately simple; it is admission
// policy, not understanding.
package classify

import "strings"

// generationKeywords mark a message as an image-generation request.
var generationKeywords = []string{
	"create image", "generate image", "make image", "draw", "create picture",
	"generate picture", "make picture", "show me", "create a", "generate a",
	"make a", "design", "illustrate", "visualize", "paint", "sketch",
}

// IsImageGeneration reports whether the message asks for an image to be
// generated.
func IsImageGeneration(message string) bool {
	if message == "" {
		return false
	}
	lower := strings.ToLower(message)
	for _, keyword := range generationKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
