package handler

import (
	"context"
	"github.com/goccy/go-json"
	"github.com/golang/mock/gomock"
	"github.com/gorilla/websocket"
	"github.com/rookgm/tableorder/internal/feed"
	"github.com/rookgm/tableorder/internal/handler/http/mocks"
	"github.com/rookgm/tableorder/internal/middleware"
	"github.com/rookgm/tableorder/internal/models"
	ws "github.com/rookgm/tableorder/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type wsMessage struct {
	Type   string          `json:"type"`
	Filter string          `json:"filter"`
	Data   json.RawMessage `json:"data"`
}

func newSubscriptionServer(t *testing.T, token *models.TokenPayload, orders *mocks.MockOrderService, notifications *mocks.MockNotificationService) (*httptest.Server, *feed.Broker) {
	t.Helper()

	broker := feed.NewBroker(zap.NewNop(), 16)
	hub := ws.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	sh := NewSubscriptionHandler(broker, hub, orders, notifications, nil, 0, zap.NewNop())
	h := sh.Subscribe()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != nil {
			r = r.WithContext(middleware.WithPayload(r.Context(), token))
		}
		h(w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return srv, broker
}

func dialSubscription(srv *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestSubscriptionHandler_CustomerOwnOrders(t *testing.T) {
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	notifications := mocks.NewMockNotificationService(ctrl)
	orders.EXPECT().ListUserOrders(gomock.Any(), customerToken.User()).
		Return([]models.Order{{ID: "o-1", UserID: "u-1", Status: models.OrderStatusPending}}, nil).AnyTimes()

	srv, broker := newSubscriptionServer(t, customerToken, orders, notifications)
	conn, resp, err := dialSubscription(srv, "table=orders&event=*&filter=user_id=eq.u-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	snap := readWS(t, conn)
	require.Equal(t, ws.MessageTypeSnapshot, snap.Type)
	var rows []models.Order
	require.NoError(t, json.Unmarshal(snap.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "o-1", rows[0].ID)

	order := models.Order{ID: "o-1", UserID: "u-1", Status: models.OrderStatusPreparing}
	ev, err := feed.NewEvent(feed.TableOrders, feed.EventUpdate, order)
	require.NoError(t, err)
	require.NoError(t, broker.Publish(context.Background(), ev))

	change := readWS(t, conn)
	require.Equal(t, ws.MessageTypeChange, change.Type)
	var got feed.RowEvent
	require.NoError(t, json.Unmarshal(change.Data, &got))
	assert.Equal(t, "preparing", got.Columns["status"])
}

func TestSubscriptionHandler_Refused(t *testing.T) {
	tests := []struct {
		name           string
		token          *models.TokenPayload
		query          string
		setup          func(orders *mocks.MockOrderService)
		wantStatusCode int
	}{
		{
			name:           "anonymous_return_401",
			query:          "table=orders",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "unknown_table_return_400",
			token:          customerToken,
			query:          "table=profiles",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "unsupported_operator_return_400",
			token:          customerToken,
			query:          "table=orders&filter=user_id=neq.u-1",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "other_user_return_403",
			token:          customerToken,
			query:          "table=orders&filter=user_id=eq.u-2",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "whole_table_return_403",
			token:          customerToken,
			query:          "table=notifications",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:  "foreign_order_return_403",
			token: customerToken,
			query: "table=orders&filter=id=eq.o-9",
			setup: func(orders *mocks.MockOrderService) {
				orders.EXPECT().Get(gomock.Any(), customerToken.User(), "o-9").Return(nil, models.ErrDataNotFound).Times(1)
			},
			wantStatusCode: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			orders := mocks.NewMockOrderService(ctrl)
			notifications := mocks.NewMockNotificationService(ctrl)
			if tt.setup != nil {
				tt.setup(orders)
			}

			srv, _ := newSubscriptionServer(t, tt.token, orders, notifications)
			conn, resp, err := dialSubscription(srv, tt.query)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			if conn != nil {
				conn.Close()
			}
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatusCode, resp.StatusCode)
		})
	}
}

func TestSubscriptionHandler_AdminNotifications(t *testing.T) {
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	notifications := mocks.NewMockNotificationService(ctrl)
	uid := "u-1"
	notifications.EXPECT().ListAdmin(gomock.Any(), adminToken.User()).Return([]models.Notification{
		{ID: "n-1", IsAdminNotification: true, Type: models.NotificationOrderReceived},
		{ID: "n-2", UserID: &uid, Type: "order_ready"},
	}, nil).AnyTimes()

	srv, _ := newSubscriptionServer(t, adminToken, orders, notifications)
	conn, resp, err := dialSubscription(srv, "table=notifications&event=INSERT&filter=is_admin_notification=eq.true")
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	snap := readWS(t, conn)
	require.Equal(t, ws.MessageTypeSnapshot, snap.Type)
	assert.Equal(t, "notifications:INSERT:is_admin_notification=eq.true", snap.Filter)
	var rows []models.Notification
	require.NoError(t, json.Unmarshal(snap.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "n-1", rows[0].ID)
}

func TestSubscriptionHandler_AdminNotificationsSnapshotScope(t *testing.T) {
	uid, other := "u-1", "u-2"
	all := []models.Notification{
		{ID: "n-1", IsAdminNotification: true, Type: models.NotificationOrderReceived},
		{ID: "n-2", UserID: &uid, Type: "order_ready"},
		{ID: "n-3", UserID: &other, Type: "order_preparing"},
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{
			name:    "no_filter",
			query:   "table=notifications",
			wantIDs: []string{"n-1", "n-2", "n-3"},
		},
		{
			name:    "other_user",
			query:   "table=notifications&filter=user_id=eq.u-2",
			wantIDs: []string{"n-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			orders := mocks.NewMockOrderService(ctrl)
			notifications := mocks.NewMockNotificationService(ctrl)
			notifications.EXPECT().ListAll(gomock.Any(), adminToken.User()).Return(all, nil).AnyTimes()

			srv, _ := newSubscriptionServer(t, adminToken, orders, notifications)
			conn, resp, err := dialSubscription(srv, tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			defer conn.Close()

			snap := readWS(t, conn)
			require.Equal(t, ws.MessageTypeSnapshot, snap.Type)
			var rows []models.Notification
			require.NoError(t, json.Unmarshal(snap.Data, &rows))

			ids := make([]string, 0, len(rows))
			for _, n := range rows {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
