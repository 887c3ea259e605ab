package gateway

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SWM-FIRE/modoco-backend-sub000/domain/room"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/auth"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/registry"
	"github.com/SWM-FIRE/modoco-backend-sub000/modules/rooms"
)

const defaultMessageLimit = 50

// buildApp creates the Fiber app with every route.
func (m *Module) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "modoco rooms",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	app.Get("/health", m.healthHandler)
	if m.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(m.metrics.Registry, promhttp.HandlerOpts{})))
	}

	ws := app.Group("/ws", UpgradeMiddleware(m.life), IdentityMiddleware(m.verifier))
	ws.Get("/"+NamespaceRoom, websocket.New(m.serve(NamespaceRoom, m.roomTable())))
	ws.Get("/"+NamespaceLobby, websocket.New(m.serve(NamespaceLobby, m.lobbyTable())))
	ws.Get("/"+NamespaceChat, websocket.New(m.serve(NamespaceChat, m.chatTable())))

	api := app.Group("/api/v1", IdentityMiddleware(m.verifier))
	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/:id", m.getRoom)
	api.Delete("/rooms/:id", m.deleteRoom)
	api.Get("/messages", m.listMessages)
	api.Get("/sessions/:id", m.getSession)

	return app
}

// serve returns the websocket handler of one namespace.
func (m *Module) serve(namespace string, table Table) func(*websocket.Conn) {
	return func(ws *websocket.Conn) {
		claims := wsIdentity(ws)
		var uid, nickname string
		if claims != nil {
			uid, nickname = claims.UserID, claims.Nickname
		}
		conn := registry.NewConnection(uuid.New().String(), uid, nickname, namespace)
		cl := newClient(conn, ws, m.cfg.SendQueueSize, m.logger)
		go cl.writePump(m.cfg.WriteTimeout, m.cfg.PingInterval)

		if claims == nil {
			cl.exception(room.ErrInvalidCredentials.Message)
			cl.close()
			cl.wait()
			return
		}

		if err := m.coord.Connect(context.Background(), conn, cl); err != nil {
			m.logger.Error("Failed to attach connection", "sid", conn.ID, "error", err)
			cl.exception(room.ErrUnavailable.Message)
			cl.close()
			cl.wait()
			return
		}
		defer m.disconnect(cl)

		if namespace == NamespaceLobby {
			if err := m.bus.JoinLobby(conn.ID); err != nil {
				m.logger.Warn("Failed to join lobby", "sid", conn.ID, "error", err)
			}
		}
		if m.metrics != nil {
			m.metrics.Connections.WithLabelValues(namespace).Inc()
		}
		m.emitOpened(conn)
		m.logger.Debug("Connection opened", "sid", conn.ID, "uid", uid, "namespace", namespace)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					m.logger.Debug("Connection closed unexpectedly", "sid", conn.ID, "error", err)
				}
				return
			}
			m.handleFrame(cl, table, raw)
		}
	}
}

// handleFrame runs one inbound frame. Frames of a connection are handled
// one at a time, in arrival order.
func (m *Module) handleFrame(cl *client, table Table, raw []byte) {
	frame, err := decodeFrame(raw)
	if err != nil {
		cl.exception("malformed frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()
	if err := table.Dispatch(ctx, cl, frame); err != nil {
		m.reportError(cl, frame.Event, err)
	}
}

// reportError sends err to the connection that caused it.
func (m *Module) reportError(cl *client, event string, err error) {
	if room.KindOf(err) == room.KindInternal {
		m.logger.Error("Event failed", "event", event, "sid", cl.conn.ID, "error", err)
	} else {
		m.logger.Debug("Event rejected", "event", event, "sid", cl.conn.ID, "error", err)
	}
	cl.exception(room.PublicMessage(err))
}

// disconnect runs once per connection after its read loop ends.
func (m *Module) disconnect(cl *client) {
	conn, ok := m.coord.Disconnect(context.Background(), cl.conn.ID)
	cl.close()
	cl.wait()
	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.Connections.WithLabelValues(conn.Namespace).Dec()
	}
	m.emitClosed(conn)
	m.logger.Debug("Connection closed", "sid", conn.ID, "uid", conn.UserID)
}

func wsIdentity(ws *websocket.Conn) *auth.Claims {
	claims, _ := ws.Locals(IdentityKey).(*auth.Claims)
	return claims
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	s := m.life.Snapshot()
	details := map[string]any{
		"phase":       s.Phase.String(),
		"connections": m.registry.CountByNamespace(),
	}
	if s.Degraded {
		details["degraded"] = s.DegradedReason
	}
	if !s.AcceptingRooms() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status:  "unavailable",
			Details: details,
		})
	}
	return c.JSON(HealthResponse{Status: "healthy", Details: details})
}

// listRooms handles GET /api/v1/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	list, err := m.rooms.ListRooms(c.UserContext())
	if err != nil {
		return m.domainError(c, err)
	}
	return c.JSON(ListRoomsResponse{Rooms: list})
}

// createRoom handles POST /api/v1/rooms. The caller becomes the moderator.
func (m *Module) createRoom(c *fiber.Ctx) error {
	var req rooms.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}
	req.ModeratorUID = identity(c).UserID

	view, err := m.rooms.CreateRoom(c.UserContext(), req)
	if err != nil {
		return m.domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *Module) getRoom(c *fiber.Ctx) error {
	view, err := m.rooms.GetRoom(c.UserContext(), c.Params("id"))
	if err != nil {
		return m.domainError(c, err)
	}
	return c.JSON(view)
}

// deleteRoom handles DELETE /api/v1/rooms/:id.
func (m *Module) deleteRoom(c *fiber.Ctx) error {
	if err := m.rooms.DeleteRoom(c.UserContext(), c.Params("id"), identity(c).UserID); err != nil {
		return m.domainError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// listMessages handles GET /api/v1/messages.
func (m *Module) listMessages(c *fiber.Ctx) error {
	limit := defaultMessageLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	list, err := m.messages.ListMessages(c.UserContext(), identity(c).UserID, limit)
	if err != nil {
		return m.domainError(c, err)
	}
	return c.JSON(ListMessagesResponse{Messages: list})
}

// getSession handles GET /api/v1/sessions/:id.
func (m *Module) getSession(c *fiber.Ctx) error {
	s, ok, err := m.sessions.FindSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return m.domainError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Session not found",
		})
	}
	return c.JSON(s)
}

// domainError maps a classified error to an HTTP response.
func (m *Module) domainError(c *fiber.Ctx, err error) error {
	kind := room.KindOf(err)
	status := fiber.StatusInternalServerError
	switch kind {
	case room.KindValidation:
		status = fiber.StatusBadRequest
	case room.KindAuth:
		status = fiber.StatusUnauthorized
	case room.KindPermission:
		status = fiber.StatusForbidden
	case room.KindNotFound:
		status = fiber.StatusNotFound
	case room.KindConflict, room.KindCapacity:
		status = fiber.StatusConflict
	case room.KindUnavailable:
		status = fiber.StatusServiceUnavailable
	default:
		m.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:   kind.String(),
		Message: room.PublicMessage(err),
	})
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "message", message, "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
