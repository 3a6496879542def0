package model

// Diagnostic 一次完成的诊断
type Diagnostic struct {
	UUIDBase
	UserID     *uint   `gorm:"index" json:"userId,omitempty"`
	CompanyID  *uint   `gorm:"index" json:"companyId,omitempty"`
	TotalScore float64 `gorm:"not null" json:"totalScore"`
	LevelID    int     `gorm:"not null" json:"levelId"`
	LevelTitle string  `gorm:"size:100" json:"levelTitle"`

	User       *User                `json:"-"`
	Company    *Company             `json:"-"`
	Categories []DiagnosticCategory `gorm:"foreignKey:DiagnosticID" json:"categories"`
	Answers    []DiagnosticAnswer   `gorm:"foreignKey:DiagnosticID" json:"answers"`
}

func (Diagnostic) TableName() string {
	return "diagnostics"
}

type DiagnosticCategory struct {
	BaseModel
	DiagnosticID string  `gorm:"index;type:varchar(36)" json:"diagnosticId"`
	CategoryID   int     `gorm:"not null" json:"categoryId"`
	Score        float64 `json:"score"`
	LevelID      int     `json:"levelId"`
	LevelTitle   string  `gorm:"size:100" json:"levelTitle"`
}

func (DiagnosticCategory) TableName() string {
	return "diagnostic_categories"
}

type DiagnosticAnswer struct {
	BaseModel
	DiagnosticID string  `gorm:"index;type:varchar(36)" json:"diagnosticId"`
	QuestionID   int     `gorm:"not null" json:"questionId"`
	CategoryID   int     `json:"categoryId"`
	AnswerID     int     `json:"answerId"`
	Score        float64 `json:"score"`
}

func (DiagnosticAnswer) TableName() string {
	return "diagnostic_answers"
}
