package remediation

import (
	"fmt"
	"net/url"
	"regexp"
)

const searchEngineURL = "https://www.google.com/search?q="

// offTopic matches titles of entertainment content that slips into
// lecture searches.
var offTopic = regexp.MustCompile(`(?i)\b(vlogs?|reactions?|pranks?|trailers?|memes?|gameplay|music video|official mv|funny|tiktok|asmr|unboxing)\b`)

func isOffTopic(title string) bool {
	return offTopic.MatchString(title)
}

func searchLink(title, query string) Link {
	return Link{Title: title, URL: searchEngineURL + url.QueryEscape(query)}
}

func documentLinks(course string) []Link {
	return []Link{
		searchLink(fmt.Sprintf("%s lecture notes (PDF)", course), course+" lecture notes filetype:pdf"),
		searchLink(fmt.Sprintf("%s textbook and reference material", course), course+" textbook"),
	}
}

func exerciseLinks(course string) []Link {
	return []Link{
		searchLink(fmt.Sprintf("%s exercises with solutions", course), course+" exercises with solutions"),
		searchLink(fmt.Sprintf("%s practice quiz", course), course+" quiz"),
	}
}

func fallbackRoadmap(course string, progress int) []string {
	return []string{
		fmt.Sprintf("Review the core concepts of %s (currently at %d%%).", course, progress),
		"Work through extra exercises and a small hands-on project on the topics you missed.",
		fmt.Sprintf("Watch in-depth lectures and read outside material on %s.", course),
		"Discuss the hardest parts with classmates or your lecturer.",
	}
}

func fallbackQuery(course string) string {
	return "lecture on " + course
}

func buildPrompt(course string, progress int) string {
	return fmt.Sprintf(`A university student is at %d%% progress in the course "%s".
Return a JSON object with exactly two keys:
"roadmap": 4 to 6 short, concrete study steps in order, suited to that progress level;
"search_queries": 2 or 3 short YouTube search phrases for lectures on the topics the student most likely struggles with.`, progress, course)
}
