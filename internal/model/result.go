package model

// Answer 一道题的作答
type Answer struct {
	QuestionID int     `json:"question_id"`
	CategoryID int     `json:"category_id"`
	AnswerID   int     `json:"answer_id"`
	Score      float64 `json:"score"`
}

type LevelRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type CategoryResult struct {
	CategoryID int      `json:"category_id"`
	Score      float64  `json:"score"`
	Level      LevelRef `json:"level"`
}

type CalculatedResult struct {
	TotalScore   float64          `json:"total_score"`
	GeneralLevel LevelRef         `json:"general_level"`
	Categories   []CategoryResult `json:"categories"`
}

// UserResultsData 结果页文档，每次请求重新组装
type UserResultsData struct {
	Hero       HeroBlock       `json:"hero"`
	Advice     AdviceBlock     `json:"advice"`
	Categories CategoriesBlock `json:"categories"`
	Trail      TrailBlock      `json:"trail"`
	CTA        CTABlock        `json:"cta"`
	Conclusion ConclusionBlock `json:"conclusion"`
	Content    ContentBlock    `json:"content"`
	Contacts   ContactsBlock   `json:"contacts"`
}

type HeroBlock struct {
	Title        string  `json:"title"`
	Subtitle     string  `json:"subtitle"`
	Score        float64 `json:"score"`
	LevelID      int     `json:"level_id"`
	LevelTitle   string  `json:"level_title"`
	InsightTitle string  `json:"insight_title"`
	InsightText  string  `json:"insight_text"`
	Image        string  `json:"image"`
}

type AdviceBlock struct {
	Title        string `json:"title"`
	InsightTitle string `json:"insight_title"`
	Text         string `json:"text"`
	Image        string `json:"image"`
}

type CategoriesBlock struct {
	Title string         `json:"title"`
	Items []CategoryCard `json:"items"`
}

type CategoryCard struct {
	CategoryID  int          `json:"category_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Score       float64      `json:"score"`
	LevelID     int          `json:"level_id"`
	LevelTitle  string       `json:"level_title"`
	Summary     string       `json:"summary"`
	Image       string       `json:"image"`
	Insight     string       `json:"insight"`
	Courses     []CourseCard `json:"courses"`
}

type CourseCard struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	Duration    string `json:"duration"`
}

type TrailBlock struct {
	SectionTitle string `json:"section_title"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	URL          string `json:"url"`
	Image        string `json:"image"`
}

type CTABlock struct {
	Title       string `json:"title"`
	Text        string `json:"text"`
	ButtonLabel string `json:"button_label"`
	ButtonURL   string `json:"button_url"`
	Image       string `json:"image"`
}

type ConclusionBlock struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type ContentBlock struct {
	Title   string       `json:"title"`
	Courses []CourseCard `json:"courses"`
}

type ContactsBlock struct {
	Title string       `json:"title"`
	Rows  []ContactRow `json:"rows"`
}

// ContactRow 一个电话号码一行
type ContactRow struct {
	Region string `json:"region"`
	City   string `json:"city"`
	Phone  string `json:"phone"`
}
