package remediation

// Origin records where roadmap content came from. It is not serialized so
// clients see the same shape either way.
type Origin string

const (
	OriginAI       Origin = "ai"
	OriginFallback Origin = "fallback"
)

type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type Resources struct {
	Videos    []Link `json:"videos"`
	Documents []Link `json:"documents"`
	Exercises []Link `json:"exercises"`
}

// RoadmapContent is an ordered study plan plus supporting resources.
type RoadmapContent struct {
	Roadmap   []string  `json:"roadmap"`
	Resources Resources `json:"resources"`
	Origin    Origin    `json:"-"`
}

// CourseRemediation pairs a weak course with its content.
type CourseRemediation struct {
	Course   string         `json:"course"`
	Progress int            `json:"progress"`
	Content  RoadmapContent `json:"content"`
}

// WeakCourseReport lists remediation for every course under the threshold.
type WeakCourseReport struct {
	Message         string              `json:"message"`
	Recommendations []CourseRemediation `json:"recommendations"`
}

// plan is the structure requested from the content generation service.
type plan struct {
	Roadmap       []string `json:"roadmap"`
	SearchQueries []string `json:"search_queries"`
}
