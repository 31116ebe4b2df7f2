package handler

import (
	"context"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/golang/mock/gomock"
	"github.com/rookgm/tableorder/internal/handler/http/mocks"
	"github.com/rookgm/tableorder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMenuHandler_ListMenu(t *testing.T) {
	tests := []struct {
		name           string
		token          *models.TokenPayload
		target         string
		setup          func(t *testing.T) *mocks.MockMenuService
		wantStatusCode int
		wantLen        int
	}{
		{
			name:   "anonymous_return_200",
			target: "/api/menu?category=pizza",
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().List(gomock.Any(), models.CurrentUser{}, "pizza").
					Return([]models.FoodItem{{ID: "f-1", Name: "Margherita", Category: "pizza", Price: 250, IsActive: true}}, nil).Times(1)
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantLen:        1,
		},
		{
			name:   "admin_sees_inactive_return_200",
			token:  adminToken,
			target: "/api/admin/menu",
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().List(gomock.Any(), adminToken.User(), "").
					Return([]models.FoodItem{{ID: "f-1", IsActive: true}, {ID: "f-2"}}, nil).Times(1)
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantLen:        2,
		},
		{
			name:   "empty_menu_return_200",
			target: "/api/menu",
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantLen:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, http.MethodGet, tt.target, "", tt.token, nil)
			w := httptest.NewRecorder()

			NewMenuHandler(tt.setup(t)).ListMenu()(w, req)

			res := w.Result()
			defer res.Body.Close()
			require.Equal(t, tt.wantStatusCode, res.StatusCode)

			var got []models.FoodItem
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestMenuHandler_CreateMenuItem(t *testing.T) {
	tests := []struct {
		name           string
		token          *models.TokenPayload
		body           string
		setup          func(t *testing.T) *mocks.MockMenuService
		wantStatusCode int
	}{
		{
			name:  "valid_item_return_201",
			token: adminToken,
			body:  `{"name":"Margherita","category":"pizza","price":250,"discount_type":"percentage","discount_value":10,"is_active":true}`,
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().Create(gomock.Any(), adminToken.User(), gomock.Any()).
					DoAndReturn(func(_ context.Context, _ models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error) {
						assert.Equal(t, "Margherita", item.Name)
						assert.Equal(t, models.DiscountPercentage, item.DiscountType)
						created := *item
						created.ID = "f-1"
						return &created, nil
					}).Times(1)
				return svcMock
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:  "invalid_item_return_400",
			token: adminToken,
			body:  `{"name":"Margherita","category":"pizza","price":250,"discount_type":"percentage","discount_value":150}`,
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, fmt.Errorf("%w: percentage discount above 100", models.ErrValidation)).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:  "customer_return_403",
			token: customerToken,
			body:  `{"name":"Margherita","category":"pizza","price":250}`,
			setup: func(t *testing.T) *mocks.MockMenuService {
				svcMock := mocks.NewMockMenuService(gomock.NewController(t))
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrForbidden).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(t, http.MethodPost, "/api/admin/menu", tt.body, tt.token, nil)
			w := httptest.NewRecorder()

			NewMenuHandler(tt.setup(t)).CreateMenuItem()(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestMenuHandler_UpdateAndDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	svcMock := mocks.NewMockMenuService(ctrl)
	svcMock.EXPECT().Update(gomock.Any(), adminToken.User(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.CurrentUser, item *models.FoodItem) (*models.FoodItem, error) {
			assert.Equal(t, "f-1", item.ID, "id is taken from the path")
			return item, nil
		}).Times(1)
	svcMock.EXPECT().Delete(gomock.Any(), adminToken.User(), "f-1").Return(nil).Times(1)
	svcMock.EXPECT().Delete(gomock.Any(), adminToken.User(), "f-9").Return(models.ErrDataNotFound).Times(1)

	h := NewMenuHandler(svcMock)
	params := map[string]string{"id": "f-1"}

	w := httptest.NewRecorder()
	h.UpdateMenuItem()(w, newRequest(t, http.MethodPut, "/api/admin/menu/f-1", `{"id":"other","name":"Pasta","category":"mains","price":9}`, adminToken, params))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.DeleteMenuItem()(w, newRequest(t, http.MethodDelete, "/api/admin/menu/f-1", "", adminToken, params))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.DeleteMenuItem()(w, newRequest(t, http.MethodDelete, "/api/admin/menu/f-9", "", adminToken, map[string]string{"id": "f-9"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
