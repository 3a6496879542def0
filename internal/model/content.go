package model

import (
	"encoding/json"
	"strings"
)

// Directus 内容集合对应的结构体

// Level 成熟度等级
type Level struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Sort        int    `json:"sort"`
}

// LevelRange 分数区间 -> 等级，category_id 为0表示全局区间
type LevelRange struct {
	ID         int     `json:"id"`
	MinScore   float64 `json:"min_score"`
	MaxScore   float64 `json:"max_score"`
	LevelID    int     `json:"level_id"`
	CategoryID int     `json:"category_id,omitempty"`
}

func (r LevelRange) Contains(score float64) bool {
	return r.MinScore <= score && score <= r.MaxScore
}

type Category struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Sort        int    `json:"sort"`
}

type AnswerOption struct {
	ID    int     `json:"id"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Sort  int     `json:"sort"`
}

type Question struct {
	ID         int            `json:"id"`
	Title      string         `json:"title"`
	Help       string         `json:"help"`
	CategoryID int            `json:"category_id"`
	Sort       int            `json:"sort"`
	Answers    []AnswerOption `json:"answers"`
}

// ResultsText 结果页的固定文案（singleton）
type ResultsText struct {
	HeroTitle       string `json:"hero_title"`
	HeroSubtitle    string `json:"hero_subtitle"`
	AdviceTitle     string `json:"advice_title"`
	CategoriesTitle string `json:"categories_title"`
	TrailTitle      string `json:"trail_title"`
	ContentTitle    string `json:"content_title"`
	ConclusionTitle string `json:"conclusion_title"`
	ConclusionText  string `json:"conclusion_text"`
	ContactTitle    string `json:"contact_title"`
}

type HeroInsight struct {
	ID      int    `json:"id"`
	LevelID int    `json:"level_id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Image   string `json:"image"`
}

type LevelInsight struct {
	ID      int    `json:"id"`
	LevelID int    `json:"level_id"`
	Title   string `json:"title"`
	Advice  string `json:"advice"`
	Image   string `json:"image"`
}

type CategorySummary struct {
	ID         int    `json:"id"`
	CategoryID int    `json:"category_id"`
	LevelID    int    `json:"level_id"`
	Summary    string `json:"summary"`
	Image      string `json:"image"`
}

type CategoryInsight struct {
	ID         int    `json:"id"`
	CategoryID int    `json:"category_id"`
	LevelID    int    `json:"level_id"`
	Tip        string `json:"tip"`
}

type Trail struct {
	ID          int    `json:"id"`
	LevelID     int    `json:"level_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
}

type CTA struct {
	ID          int    `json:"id"`
	Page        string `json:"page"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	ButtonLabel string `json:"button_label"`
	ButtonURL   string `json:"button_url"`
	Image       string `json:"image"`
}

type Course struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	Image       string        `json:"image"`
	Duration    string        `json:"duration"`
	Levels      []RelationRef `json:"levels"`
	Categories  []RelationRef `json:"categories"`
}

func (c Course) HasLevel(levelID int) bool {
	return containsRef(c.Levels, levelID)
}

func (c Course) HasCategory(categoryID int) bool {
	return containsRef(c.Categories, categoryID)
}

func containsRef(refs []RelationRef, id int) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}

type Region struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type RegionalPhone struct {
	ID     int       `json:"id"`
	Region RegionRef `json:"region"`
	City   string    `json:"city"`
	Phone  string    `json:"phone"`
}

// RelationRef M2M 关联项。Directus 按 fields 参数返回纯 id 或 junction 对象
// （如 {"id": 7, "levels_id": 2}），两种形式都取目标 id。
type RelationRef struct {
	ID int `json:"id"`
}

func (r *RelationRef) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		r.ID = n
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, raw := range obj {
		if key == "id" || !strings.HasSuffix(key, "_id") {
			continue
		}
		if err := json.Unmarshal(raw, &n); err == nil {
			r.ID = n
			return nil
		}
		// 深层展开：{"levels_id": {"id": 2, ...}}
		var nested struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && nested.ID != 0 {
			r.ID = nested.ID
			return nil
		}
	}
	if raw, ok := obj["id"]; ok {
		return json.Unmarshal(raw, &r.ID)
	}
	return nil
}

// RegionRef M2O 关联：未展开时为 id，展开时为对象
type RegionRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func (r *RegionRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		r.ID = n
		return nil
	}
	var region Region
	if err := json.Unmarshal(data, &region); err != nil {
		return err
	}
	r.ID = region.ID
	r.Title = region.Title
	return nil
}
