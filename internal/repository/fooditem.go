package repository

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/rookgm/tableorder/internal/repository/postgres"
)

const foodItemColumns = `id, name, description, category, price::float8, discount_type, discount_value::float8,
						image_url, is_active, created_at, updated_at`

const (
	insertFoodItemQuery = `
						INSERT INTO fooditems (id, name, description, category, price, discount_type, discount_value, image_url, is_active)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
						RETURNING ` + foodItemColumns

	selectFoodItemByIDQuery = `
						SELECT ` + foodItemColumns + ` FROM fooditems
						WHERE id = $1
`
	selectFoodItemsByIDsQuery = `
						SELECT ` + foodItemColumns + ` FROM fooditems
						WHERE id = ANY($1)
`
	selectFoodItemsQuery = `
						SELECT ` + foodItemColumns + ` FROM fooditems
						WHERE ($1 = '' OR category = $1) AND (is_active OR $2)
						ORDER BY category, name
`
	updateFoodItemQuery = `
						UPDATE fooditems
						SET name = $2, description = $3, category = $4, price = $5, discount_type = $6,
						    discount_value = $7, image_url = $8, is_active = $9, updated_at = now()
						WHERE id = $1
						RETURNING ` + foodItemColumns

	deleteFoodItemQuery = `
						DELETE FROM fooditems
						WHERE id = $1
`
)

// FoodItemRepository stores the menu
type FoodItemRepository struct {
	db *postgres.DB
}

// NewFoodItemRepository creates new FoodItemRepository instance
func NewFoodItemRepository(db *postgres.DB) *FoodItemRepository {
	return &FoodItemRepository{db: db}
}

// CreateFoodItem inserts a menu item
func (fr *FoodItemRepository) CreateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error) {
	created, err := scanFoodItem(fr.db.QueryRow(ctx, insertFoodItemQuery,
		uuid.NewString(), item.Name, item.Description, item.Category, item.Price,
		item.DiscountType, item.DiscountValue, item.ImageURL, item.IsActive))
	if err != nil {
		if errCode := fr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return created, nil
}

// GetFoodItemByID returns menu item by id
func (fr *FoodItemRepository) GetFoodItemByID(ctx context.Context, id string) (*models.FoodItem, error) {
	item, err := scanFoodItem(fr.db.QueryRow(ctx, selectFoodItemByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return item, nil
}

// GetFoodItemsByIDs returns the menu items with the given ids keyed by id
func (fr *FoodItemRepository) GetFoodItemsByIDs(ctx context.Context, ids []string) (map[string]models.FoodItem, error) {
	items, err := fr.list(ctx, selectFoodItemsByIDsQuery, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.FoodItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	return byID, nil
}

// GetFoodItems lists menu items of a category, or all categories when it is empty
func (fr *FoodItemRepository) GetFoodItems(ctx context.Context, category string, includeInactive bool) ([]models.FoodItem, error) {
	return fr.list(ctx, selectFoodItemsQuery, category, includeInactive)
}

// UpdateFoodItem replaces a menu item
func (fr *FoodItemRepository) UpdateFoodItem(ctx context.Context, item *models.FoodItem) (*models.FoodItem, error) {
	updated, err := scanFoodItem(fr.db.QueryRow(ctx, updateFoodItemQuery,
		item.ID, item.Name, item.Description, item.Category, item.Price,
		item.DiscountType, item.DiscountValue, item.ImageURL, item.IsActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return updated, nil
}

// DeleteFoodItem removes a menu item
func (fr *FoodItemRepository) DeleteFoodItem(ctx context.Context, id string) error {
	cmd, err := fr.db.Exec(ctx, deleteFoodItemQuery, id)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

func (fr *FoodItemRepository) list(ctx context.Context, query string, args ...any) ([]models.FoodItem, error) {
	rows, err := fr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.FoodItem{}

	for rows.Next() {
		item, err := scanFoodItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanFoodItem(row pgx.Row) (*models.FoodItem, error) {
	item := models.FoodItem{}
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Category, &item.Price,
		&item.DiscountType, &item.DiscountValue, &item.ImageURL, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &item, nil
}
