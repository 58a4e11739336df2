// Package insight turns a progress snapshot into short readable findings.
package insight

import (
	"fmt"
	"math"
	"strings"

	"github.com/studypath/studypath/internal/progress"
)

const (
	unstableAbove = 20.0
	steadyFrom    = 10.0
	strongFrom    = 80
	weakBelow     = 60
)

const (
	FindingInsufficient = "Not enough progress data to analyze."
	FindingAllMidRange  = "All courses are in the mid range (60-79%). Push the strongest ones above 80%."
)

// Analyze reports the mean progress, how spread out it is, and which
// courses are strong (>= 80) or weak (< 60). Standard deviation tiers are
// sd > 20 unstable, 10 <= sd <= 20 fairly steady, sd < 10 very steady.
func Analyze(records []progress.Record) []string {
	if len(records) == 0 {
		return []string{FindingInsufficient}
	}

	mean, sd := meanStdDev(records)
	findings := []string{
		fmt.Sprintf("Average progress across all courses is %.1f%%.", mean),
		volatility(sd),
	}

	var strong, weak []string
	for _, r := range records {
		switch {
		case r.Progress >= strongFrom:
			strong = append(strong, r.Course)
		case r.Progress < weakBelow:
			weak = append(weak, r.Course)
		}
	}

	if len(strong) == 0 && len(weak) == 0 {
		return append(findings, FindingAllMidRange)
	}
	if len(strong) > 0 {
		findings = append(findings, fmt.Sprintf("Strong courses (>= %d%%): %s.", strongFrom, strings.Join(strong, ", ")))
	}
	if len(weak) > 0 {
		findings = append(findings, fmt.Sprintf("Courses needing attention (< %d%%): %s.", weakBelow, strings.Join(weak, ", ")))
	}
	return findings
}

func volatility(sd float64) string {
	switch {
	case sd > unstableAbove:
		return fmt.Sprintf("Progress varies a lot between courses (std dev %.1f); results are unstable.", sd)
	case sd >= steadyFrom:
		return fmt.Sprintf("Progress is fairly steady across courses (std dev %.1f).", sd)
	default:
		return fmt.Sprintf("Progress is very steady across courses (std dev %.1f).", sd)
	}
}

// meanStdDev uses the population standard deviation.
func meanStdDev(records []progress.Record) (float64, float64) {
	n := float64(len(records))
	var sum float64
	for _, r := range records {
		sum += float64(r.Progress)
	}
	mean := sum / n

	var sq float64
	for _, r := range records {
		d := float64(r.Progress) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
