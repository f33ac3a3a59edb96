package service

import (
	"fmt"
	"math"
	"strings"
)

const defaultCharLimit = 2000

var platformCharLimits = map[string]int{
	"x":         300,
	"twitter":   300,
	"x/twitter": 300,
	"linkedin":  3000,
	"facebook":  100,
	"instagram": 2000,
}

// CharLimit returns the approximate character ceiling for a platform.
func CharLimit(platform string) int {
	if n, ok := platformCharLimits[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return n
	}
	return defaultCharLimit
}

func BuildPrompt(topic, tone, platform string) string {
	platformName := strings.TrimSpace(platform)
	if platformName == "" {
		platformName = "Generic"
	}
	toneName := strings.TrimSpace(tone)
	if toneName == "" {
		toneName = "Neutral"
	}
	readers := strings.TrimSpace(platform)
	if readers == "" {
		readers = "general"
	}

	var b strings.Builder
	b.WriteString("Generate a slightly lengthy, engaging social media post.\n")
	fmt.Fprintf(&b, "Platform: %s.\n", platformName)
	fmt.Fprintf(&b, "Tone: %s.\n", toneName)
	fmt.Fprintf(&b, "Topic: %s.\n", strings.TrimSpace(topic))
	fmt.Fprintf(&b, "Keep it concise, at most %d characters.\n", CharLimit(platform))
	fmt.Fprintf(&b, "Use natural phrasing suitable for %s readers.\n", readers)
	return b.String()
}

// EstimateTokens approximates model usage from word counts.
func EstimateTokens(prompt, output string) int {
	return int(math.Round(float64(len(strings.Fields(prompt)))*1.3 + float64(len(strings.Fields(output)))))
}

func EstimateCost(tokens int, costPer1K float64) float64 {
	return float64(tokens) / 1000 * costPer1K
}
