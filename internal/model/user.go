package model

// User 以 Keycloak subject 标识的用户
type User struct {
	BaseModel
	KeycloakID string   `gorm:"size:64;uniqueIndex;not null" json:"keycloakId"`
	Email      string   `gorm:"size:255" json:"email"`
	FirstName  string   `gorm:"size:100" json:"firstName"`
	LastName   string   `gorm:"size:100" json:"lastName"`
	CompanyID  *uint    `gorm:"index" json:"companyId,omitempty"`
	Company    *Company `json:"company,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Company 来自 CPE 企业注册库
type Company struct {
	BaseModel
	Siret     string `gorm:"size:14;uniqueIndex;not null" json:"siret"`
	Name      string `gorm:"size:255" json:"name"`
	NafCode   string `gorm:"size:10" json:"nafCode"`
	Sector    string `gorm:"size:255" json:"sector"`
	Workforce string `gorm:"size:50" json:"workforce"`
	Region    string `gorm:"size:100" json:"region"`
	City      string `gorm:"size:100" json:"city"`
}

func (Company) TableName() string {
	return "companies"
}
