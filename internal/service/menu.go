package service

import (
	"context"
	"fmt"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/validation"
	"go.uber.org/zap"
)

// FoodItemRepository is interface for interacting with menu data
type FoodItemRepository interface {
	CatalogRepository
	CreateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error)
	GetFoodItemByID(ctx context.Context, id string) (*models.FoodItem, error)
	GetFoodItems(ctx context.Context, category string, includeInactive bool) ([]models.FoodItem, error)
	UpdateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error)
	DeleteFoodItem(ctx context.Context, id string) error
}

// MenuService manages food items
type MenuService struct {
	repo   FoodItemRepository
	logger *zap.Logger
}

// NewMenuService creates new MenuService instance
func NewMenuService(repo FoodItemRepository, logger *zap.Logger) *MenuService {
	return &MenuService{repo: repo, logger: logger.Named("menu")}
}

// List returns the menu. Inactive items are listed for admins only.
func (ms *MenuService) List(ctx context.Context, user models.CurrentUser, category string) ([]models.FoodItem, error) {
	return ms.repo.GetFoodItems(ctx, category, user.IsAdmin)
}

// Get returns a food item
func (ms *MenuService) Get(ctx context.Context, user models.CurrentUser, id string) (*models.FoodItem, error) {
	item, err := ms.repo.GetFoodItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.IsActive && !user.IsAdmin {
		return nil, models.ErrDataNotFound
	}
	return item, nil
}

// Create adds a food item
func (ms *MenuService) Create(ctx context.Context, user models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error) {
	if err := ms.check(user, item); err != nil {
		return nil, err
	}

	created, err := ms.repo.CreateFoodItem(ctx, item)
	if err != nil {
		return nil, err
	}
	ms.logger.Info("food item created", zap.String("id", created.ID), zap.String("name", created.Name))

	return created, nil
}

// Update replaces a food item
func (ms *MenuService) Update(ctx context.Context, user models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error) {
	if err := ms.check(user, item); err != nil {
		return nil, err
	}
	return ms.repo.UpdateFoodItem(ctx, item)
}

// Delete removes a food item
func (ms *MenuService) Delete(ctx context.Context, user models.CurrentUser, id string) error {
	if !user.IsAdmin {
		return models.ErrForbidden
	}
	if err := ms.repo.DeleteFoodItem(ctx, id); err != nil {
		return err
	}
	ms.logger.Info("food item deleted", zap.String("id", id))

	return nil
}

func (ms *MenuService) check(user models.CurrentUser, item *models.FoodItem) error {
	if !user.IsAdmin {
		return models.ErrForbidden
	}
	if err := validation.Struct(item); err != nil {
		return err
	}
	if item.DiscountType == models.DiscountPercentage && item.DiscountValue > 100 {
		return fmt.Errorf("%w: percentage discount above 100", models.ErrValidation)
	}
	if item.DiscountType == models.DiscountNone && item.DiscountValue != 0 {
		return fmt.Errorf("%w: discount value without discount type", models.ErrValidation)
	}
	return nil
}
