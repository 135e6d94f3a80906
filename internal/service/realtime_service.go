package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/observability"
)

const (
	realtimeSendBufferSize = 32
	realtimePingInterval   = 30 * time.Second
	realtimeQueueGroup     = "elimu-realtime"
)

var (
	// ErrRealtimeForbidden indicates the caller may not join the requested room.
	ErrRealtimeForbidden = errors.New("not allowed to join instructor room")
	// ErrRealtimeInvalidEvent indicates the event payload failed validation.
	ErrRealtimeInvalidEvent = errors.New("invalid realtime event")
)

// RealtimeConn is the subset of a websocket connection used by the relay.
type RealtimeConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	UserID        string
	Role          string
	CorrelationID string
	Context       context.Context
}

// RealtimeService relays roster change signals to instructor dashboards.
type RealtimeService interface {
	ServeConnection(conn RealtimeConn, opts RealtimeConnectionOptions)
	Publish(ctx context.Context, req dto.RosterEventRequest) (dto.RealtimeMessage, error)
	Start(ctx context.Context)
}

type realtimeService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	hub          *realtimeHub
	nodeID       string
}

type realtimeHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*realtimeClient]struct{}
	log   zerolog.Logger
}

type realtimeClient struct {
	conn    RealtimeConn
	send    chan dto.RealtimeMessage
	options RealtimeConnectionOptions
	rooms   map[string]struct{}
	service *realtimeService
	closed  chan struct{}
	once    sync.Once
}

type realtimeEnvelope struct {
	Source  string              `json:"source"`
	Message dto.RealtimeMessage `json:"message"`
}

// NewRealtimeService creates the relay. Redis and NATS are optional; without
// them events reach only sockets connected to this node.
func NewRealtimeService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) RealtimeService {
	if validate == nil {
		validate = validator.New()
	}

	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":instructor-events"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".instructor.events"
	}

	return &realtimeService{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "realtime_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/elimu-api/internal/service/realtime"),
		hub: &realtimeHub{
			rooms: make(map[string]map[*realtimeClient]struct{}),
			log:   logger.With().Str("component", "realtime_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

// InstructorRoom names the room an instructor's dashboards join.
func InstructorRoom(instructorID string) string {
	return "instructor:" + strings.ToLower(strings.TrimSpace(instructorID))
}

// Start subscribes to the configured brokers. Subscriptions are live when
// Start returns and end when ctx is cancelled.
func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		pubsub := s.redis.Subscribe(ctx, s.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to subscribe to redis realtime channel")
			_ = pubsub.Close()
		} else {
			go s.consumeRedis(ctx, pubsub)
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		s.consumeNATS(ctx)
	}
}

func (s *realtimeService) ServeConnection(conn RealtimeConn, opts RealtimeConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	client := &realtimeClient{
		conn:    conn,
		send:    make(chan dto.RealtimeMessage, realtimeSendBufferSize),
		options: opts,
		rooms:   make(map[string]struct{}),
		service: s,
		closed:  make(chan struct{}),
	}

	observability.RealtimeConnections().Inc()
	defer observability.RealtimeConnections().Dec()

	go client.writer()
	client.reader()
}

func (s *realtimeService) Publish(ctx context.Context, req dto.RosterEventRequest) (dto.RealtimeMessage, error) {
	message, err := s.buildMessage(req)
	if err != nil {
		return dto.RealtimeMessage{}, err
	}
	message.SentAt = time.Now().UTC()

	ctx, span := s.tracer.Start(ctx, "realtime.publish", trace.WithAttributes(
		attribute.String("realtime.instructor_id", message.InstructorID),
		attribute.String("realtime.reason", message.Reason),
	))
	defer span.End()

	delivered := s.hub.broadcast(InstructorRoom(message.InstructorID), message)
	span.SetAttributes(attribute.Int("realtime.local_recipients", delivered))
	observability.RealtimeEvents().WithLabelValues("local").Inc()

	if err := s.publishRemote(ctx, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fan-out failed")
		s.logger.Warn().Err(err).Str("instructor_id", message.InstructorID).Msg("failed to fan out realtime event")
	}

	return message, nil
}

// buildMessage validates a roster event and strips markup from its message.
func (s *realtimeService) buildMessage(req dto.RosterEventRequest) (dto.RealtimeMessage, error) {
	req.InstructorID = strings.ToLower(strings.TrimSpace(req.InstructorID))
	req.StudentID = strings.ToLower(strings.TrimSpace(req.StudentID))
	req.CourseID = strings.ToLower(strings.TrimSpace(req.CourseID))
	req.Reason = strings.ToLower(strings.TrimSpace(req.Reason))

	if err := s.validator.Struct(req); err != nil {
		return dto.RealtimeMessage{}, errors.Join(ErrRealtimeInvalidEvent, err)
	}

	return dto.RealtimeMessage{
		Event:        dto.RealtimeEventStudentUpdate,
		InstructorID: req.InstructorID,
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		Reason:       req.Reason,
		Message:      strings.TrimSpace(s.sanitizer.Sanitize(req.Message)),
	}, nil
}

func (s *realtimeService) publishRemote(ctx context.Context, message dto.RealtimeMessage) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(realtimeEnvelope{Source: s.nodeID, Message: message})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *realtimeService) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload), "redis")
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data, "nats")
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

// handleEvent delivers an event received from a broker. Events published by
// this node were already delivered locally and are ignored.
func (s *realtimeService) handleEvent(data []byte, origin string) {
	var envelope realtimeEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Str("origin", origin).Msg("invalid realtime event")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}

	message, err := s.buildMessage(dto.RosterEventRequest{
		InstructorID: envelope.Message.InstructorID,
		StudentID:    envelope.Message.StudentID,
		CourseID:     envelope.Message.CourseID,
		Reason:       envelope.Message.Reason,
		Message:      envelope.Message.Message,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("origin", origin).Msg("rejecting realtime event")
		return
	}
	message.SentAt = envelope.Message.SentAt

	observability.RealtimeEvents().WithLabelValues(origin).Inc()
	s.hub.broadcast(InstructorRoom(message.InstructorID), message)
}

// authorizeJoin lets instructors follow their own room and admins any room.
func (s *realtimeService) authorizeJoin(opts RealtimeConnectionOptions, instructorID string) error {
	switch strings.ToLower(opts.Role) {
	case "admin":
		return nil
	case "instructor":
		if strings.EqualFold(strings.TrimSpace(opts.UserID), instructorID) {
			return nil
		}
	}
	return ErrRealtimeForbidden
}

func (s *realtimeService) handleClientMessage(client *realtimeClient, payload dto.RealtimeClientMessage) error {
	payload.Event = strings.TrimSpace(payload.Event)
	payload.InstructorID = strings.ToLower(strings.TrimSpace(payload.InstructorID))
	if err := s.validator.Struct(payload); err != nil {
		return errors.Join(ErrRealtimeInvalidEvent, err)
	}

	room := InstructorRoom(payload.InstructorID)
	switch payload.Event {
	case dto.RealtimeEventJoin:
		if err := s.authorizeJoin(client.options, payload.InstructorID); err != nil {
			return err
		}
		s.hub.join(client, room)
		client.enqueue(dto.RealtimeMessage{
			Event:        dto.RealtimeEventJoined,
			InstructorID: payload.InstructorID,
			SentAt:       time.Now().UTC(),
		})
	case dto.RealtimeEventLeave:
		s.hub.leave(client, room)
	}
	return nil
}

func (h *realtimeHub) join(client *realtimeClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*realtimeClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
	h.log.Debug().Str("room", room).Str("user_id", client.options.UserID).Msg("client joined room")
}

func (h *realtimeHub) leave(client *realtimeClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, room)
}

func (h *realtimeHub) leaveAll(client *realtimeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range client.rooms {
		h.removeLocked(client, room)
	}
}

func (h *realtimeHub) removeLocked(client *realtimeClient, room string) {
	delete(client.rooms, room)
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Str("room", room).Str("user_id", client.options.UserID).Msg("client left room")
}

func (h *realtimeHub) broadcast(room string, message dto.RealtimeMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[room] {
		if client.enqueue(message) {
			delivered++
		} else {
			h.log.Warn().Str("room", room).Str("user_id", client.options.UserID).Msg("dropping realtime event for slow client")
		}
	}
	return delivered
}

func (h *realtimeHub) size(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (c *realtimeClient) enqueue(message dto.RealtimeMessage) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *realtimeClient) reader() {
	defer c.close()

	for {
		var payload dto.RealtimeClientMessage
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Str("user_id", c.options.UserID).Msg("realtime read loop ended")
			return
		}

		if err := c.service.handleClientMessage(c, payload); err != nil {
			c.service.logger.Warn().Err(err).Str("user_id", c.options.UserID).Str("correlation_id", c.options.CorrelationID).Msg("rejected realtime client message")
			message := "invalid event"
			if errors.Is(err, ErrRealtimeForbidden) {
				message = "Not allowed to join this instructor room"
			}
			c.enqueue(dto.RealtimeMessage{
				Event:   dto.RealtimeEventError,
				Message: message,
				SentAt:  time.Now().UTC(),
			})
		}
	}
}

func (c *realtimeClient) writer() {
	defer c.close()

	ticker := time.NewTicker(realtimePingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.leaveAll(c)
		_ = c.conn.Close()
	})
}
