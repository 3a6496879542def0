package repository

import (
	"context"
	"errors"

	"maturity_backend/internal/model"

	"gorm.io/gorm"
)

type DiagnosticRepository struct {
	DB *gorm.DB
}

func NewDiagnosticRepository(db *gorm.DB) *DiagnosticRepository {
	return &DiagnosticRepository{DB: db}
}

// Save 在一个事务中写入：按 siret 查找或创建企业，按 keycloak id 查找或创建用户，再写入诊断
func (r *DiagnosticRepository) Save(ctx context.Context, d *model.Diagnostic, user *model.User, company *model.Company) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if company != nil && company.Siret != "" {
			if err := tx.Where(model.Company{Siret: company.Siret}).
				Assign(model.Company{
					Name:      company.Name,
					NafCode:   company.NafCode,
					Sector:    company.Sector,
					Workforce: company.Workforce,
					Region:    company.Region,
					City:      company.City,
				}).
				FirstOrCreate(company).Error; err != nil {
				return err
			}
			d.CompanyID = &company.ID
		}

		if user != nil && user.KeycloakID != "" {
			assign := model.User{Email: user.Email, FirstName: user.FirstName, LastName: user.LastName}
			if d.CompanyID != nil {
				assign.CompanyID = d.CompanyID
			}
			if err := tx.Where(model.User{KeycloakID: user.KeycloakID}).
				Assign(assign).
				FirstOrCreate(user).Error; err != nil {
				return err
			}
			d.UserID = &user.ID
		}

		return tx.Omit("User", "Company").Create(d).Error
	})
}

func (r *DiagnosticRepository) List(ctx context.Context, userID *uint, page, limit int) ([]model.Diagnostic, int64, error) {
	var list []model.Diagnostic
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Diagnostic{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// FindByID 只预加载维度与答案，用户与企业不随详情返回；不存在时返回 nil, nil
func (r *DiagnosticRepository) FindByID(ctx context.Context, id string) (*model.Diagnostic, error) {
	var d model.Diagnostic
	err := r.DB.WithContext(ctx).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("category_id") }).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("question_id") }).
		First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DiagnosticRepository) FindUserByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	var u model.User
	err := r.DB.WithContext(ctx).Where("keycloak_id = ?", keycloakID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
