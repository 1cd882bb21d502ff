package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/dto"
	"order-dispatch/internal/repositories"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/customvalidator"
	"order-dispatch/pkg/middleware"
	"order-dispatch/pkg/utils"
	appwebsocket "order-dispatch/pkg/websocket"
)

// RouterTestSuite поднимает весь HTTP-слой поверх хранилища в памяти.
type RouterTestSuite struct {
	suite.Suite
	Echo     *echo.Echo
	Orders   services.OrderServiceInterface
	Sessions *services.SessionRegistry
	Hub      *appwebsocket.Hub
}

func (s *RouterTestSuite) SetupTest() {
	e := echo.New()
	v := validator.New()
	s.Require().NoError(customvalidator.RegisterCustomValidations(v))
	e.Validator = utils.NewValidator(v)

	logger := zap.NewNop()
	broker := changefeed.NewMemoryBroker()
	orderRepo := repositories.NewMemoryOrderRepository(broker)
	feedOpts := services.FeedOptions{MaxRetries: 50, RetryDelay: 5 * time.Millisecond}
	sounds := services.NewSoundCatalog([]services.Sound{{ID: "bell", Name: "Колокольчик", URL: "/sounds/bell.mp3"}})
	settings := services.NewAlertSettingsService(repositories.NewMemoryAlertSettingsRepository(broker), sounds, logger)

	s.Orders = services.NewOrderService(orderRepo, services.NewChangeFeedSubscriber(broker, feedOpts, logger), logger)
	s.Require().NoError(s.Orders.Start())

	s.Hub = appwebsocket.NewHub(logger)
	go s.Hub.Run()

	s.Sessions = services.NewSessionRegistry(services.SessionDeps{
		Orders:    orderRepo,
		Settings:  settings,
		Sounds:    sounds,
		Transport: broker,
		Feed:      feedOpts,
		Alerts:    services.AlertEngineOptions{VisualWindow: time.Second},
		Logger:    logger,
	}, logger)

	InitRouter(e, Deps{
		OrderService:         s.Orders,
		ReportService:        services.NewReportService(orderRepo, logger),
		AlertSettingsService: settings,
		Sounds:               sounds,
		Sessions:             s.Sessions,
		Hub:                  s.Hub,
		Dedup:                controllers.NewCommandDeduplicator(time.Minute),
		Logger:               logger,
	})
	s.Echo = e
}

func (s *RouterTestSuite) TearDownTest() {
	s.Sessions.CloseAll()
	s.Hub.Stop()
	s.Orders.Close()
}

func (s *RouterTestSuite) do(method, target, body, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if role != "" {
		req.Header.Set(middleware.ActorRoleHeader, role)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func (s *RouterTestSuite) createOrder(payment string) dto.OrderResponseDTO {
	rec := s.do(http.MethodPost, "/api/orders",
		`{"customer_id":"cust-1","payment_method":"`+payment+`","items":[{"product_id":"soup","quantity":1,"unit_price":7}]}`, "")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Body dto.OrderResponseDTO `json:"body"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Body
}

func (s *RouterTestSuite) TestOrderLifecycleOverREST() {
	order := s.createOrder("online")
	s.Equal("waiting_payment", order.Status)

	// Колбэк оплаты приходит с ролью system.
	rec := s.do(http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"pending"}`, "system")
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/orders/pending-count", "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"count":1`)

	rec = s.do(http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"preparing"}`, "kitchen")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/orders?status=preparing", "", "")
	s.Contains(rec.Body.String(), order.ID)

	rec = s.do(http.MethodGet, "/api/orders/export", "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), order.ID)
}

func (s *RouterTestSuite) TestRoleHeader() {
	order := s.createOrder("card")

	rec := s.do(http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"preparing"}`, "")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/orders/"+order.ID+"/status", `{"status":"preparing"}`, "storefront")
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/api/alert-settings/kitchen", `{"volume":0.2}`, "kitchen")
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/api/alert-settings/kitchen", `{"volume":0.2}`, "ADMIN")
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *RouterTestSuite) TestReadOnlyEndpoints() {
	rec := s.do(http.MethodGet, "/api/alert-settings", "", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/sounds", "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "bell")

	rec = s.do(http.MethodGet, "/api/feed/status", "", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"sessions"`)
}

func (s *RouterTestSuite) TestWebSocketPanel() {
	server := httptest.NewServer(s.Echo)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"bar", nil)
	s.Require().Error(err)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"storefront", nil)
	s.Require().Error(err)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"kitchen", nil)
	s.Require().NoError(err)
	defer conn.Close()

	s.Require().Eventually(func() bool { return s.Sessions.Count()["kitchen"] == 1 }, 2*time.Second, time.Millisecond)

	s.Require().NoError(conn.WriteJSON(map[string]interface{}{"type": "audio_unlocked", "request_id": "r-1"}))

	// Ждём ответ на команду, пропуская снимки очереди и статус ленты.
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	for {
		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		s.Require().NoError(conn.ReadJSON(&env))
		if env.Type != services.MessageCommandResult {
			continue
		}
		var result dto.CommandResultDTO
		s.Require().NoError(json.Unmarshal(env.Payload, &result))
		s.True(result.OK)
		s.Equal("r-1", result.RequestID)
		break
	}

	s.Require().NoError(conn.Close())
	s.Eventually(func() bool { return s.Sessions.Count()["kitchen"] == 0 }, 2*time.Second, time.Millisecond)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func TestInitRouter_RegistersRoutes(t *testing.T) {
	s := new(RouterTestSuite)
	s.SetT(t)
	s.SetupTest()
	defer s.TearDownTest()

	want := map[string]bool{
		"POST /api/orders":               false,
		"GET /api/orders":                false,
		"GET /api/orders/pending-count":  false,
		"GET /api/orders/export":         false,
		"PATCH /api/orders/:id/status":   false,
		"GET /api/alert-settings":        false,
		"PUT /api/alert-settings/:panel": false,
		"GET /api/sounds":                false,
		"GET /api/feed/status":           false,
		"GET /ws/:panel":                 false,
	}
	for _, r := range s.Echo.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		assert.True(t, found, route)
	}
	require.Len(t, want, 10)
}
