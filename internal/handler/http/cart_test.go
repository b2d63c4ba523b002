package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/rookgm/storefront/internal/handler/http/mocks"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartHandler_SaveCart(t *testing.T) {
	tests := []struct {
		name           string
		token          *models.TokenPayload
		body           string
		setup          func(t *testing.T) *mocks.MockCartService
		wantStatusCode int
	}{
		{
			// 202 — корзина принята;
			name:  "valid_request_return_202",
			token: &models.TokenPayload{UserID: testUserID},
			body:  `{"items":[{"product_id":"p-1","name":"Pad","unit_price":"1500","quantity":2}]}`,
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Save(testUserID, gomock.Any()).
					DoAndReturn(func(_ string, items []models.CartItem) error {
						require.Len(t, items, 1)
						assert.Equal(t, "p-1", items[0].ProductID)
						assert.True(t, items[0].UnitPrice.Equal(decimal.NewFromInt(1500)))
						return nil
					})
				return svcMock
			},
			wantStatusCode: http.StatusAccepted,
		},
		{
			// 400 — неверный формат запроса;
			name:  "invalid_item_return_400",
			token: &models.TokenPayload{UserID: testUserID},
			body:  `{"items":[{"product_id":"p-1","quantity":0}]}`,
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.NewValidationError("items[0].quantity", "must be at least 1"))
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 401 — пользователь не авторизован.
			name: "unauthorized_request_return_401",
			body: `{"items":[]}`,
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/cart", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			NewCartHandler(tt.setup(t)).SaveCart()(w, withAuth(req, tt.token))

			assert.Equal(t, tt.wantStatusCode, w.Code)
		})
	}
}

func TestCartHandler_GetCart(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T) *mocks.MockCartService
		wantStatusCode int
		wantItems      int
	}{
		{
			// 200 — успешная обработка запроса.
			name: "stored_cart_return_200",
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Load(gomock.Any(), testUserID).Return([]models.CartItem{
					{ProductID: "p-1", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
					{ProductID: "p-2", Quantity: 3, UnitPrice: decimal.NewFromInt(50)},
				}, nil)
				return svcMock
			},
			wantStatusCode: http.StatusOK,
			wantItems:      2,
		},
		{
			// 200 — успешная обработка запроса.
			name: "empty_cart_return_200",
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Load(gomock.Any(), testUserID).Return([]models.CartItem{}, nil)
				return svcMock
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 500 — внутренняя ошибка сервера.
			name: "repository_error_return_500",
			setup: func(t *testing.T) *mocks.MockCartService {
				ctrl := gomock.NewController(t)
				svcMock := mocks.NewMockCartService(ctrl)
				svcMock.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
				return svcMock
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			w := httptest.NewRecorder()

			NewCartHandler(tt.setup(t)).GetCart()(w, withAuth(req, &models.TokenPayload{UserID: testUserID}))

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)

			if tt.wantStatusCode == http.StatusOK {
				got := decodeBody[cartBody](t, res)
				assert.NotNil(t, got.Items)
				assert.Len(t, got.Items, tt.wantItems)
			} else {
				got := decodeBody[messageResponse](t, res)
				assert.Equal(t, "internal error", got.Message)
			}
		})
	}
}
