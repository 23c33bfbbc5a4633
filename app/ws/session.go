package ws

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"embedctl/embed"
	"embedctl/models"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer; ui config text can be long.
	maxMessageSize = 64 * 1024

	maxChanLen = 64
)

type ClientInfo struct {
	ID          string    `json:"session_id"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ControllerFactory builds the embed session controller for a connection.
type ControllerFactory func(ctx context.Context, id string, embedder embed.Embedder,
	opts ...embed.Option) *embed.Controller

// Session is a middleman between the websocket connection and its embed
// session controller.
type Session struct {
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	bus  EventStream
	info ClientInfo
	log  zerolog.Logger

	// Buffered channel of outbound messages.
	send chan *models.Message

	bridge     *bridgeEmbedder
	controller *embed.Controller
}

func NewSession(pCtx context.Context, logger zerolog.Logger, bus EventStream,
	conn *websocket.Conn, info ClientInfo, newController ControllerFactory) *Session {
	ctx, cancel := context.WithCancel(pCtx)

	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		conn:   conn,
		bus:    bus,
		info:   info,
		log:    logger.With().Str("session_id", info.ID).Logger(),
		send:   make(chan *models.Message, maxChanLen),
	}
	s.bridge = newBridgeEmbedder(s.push)
	s.controller = newController(ctx, info.ID, s.bridge, embed.WithListener(s.pushState))
	return s
}

func (c *Session) ID() string { return c.info.ID }

func (c *Session) Info() ClientInfo { return c.info }

func (c *Session) Controller() *embed.Controller { return c.controller }

// Start runs the read and write pumps.
func (c *Session) Start() {
	c.wg.Add(2)
	go c.writeToStream()
	go c.readStream()
}

func (c *Session) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		c.controller.Reset()
		err = c.conn.Close()
		c.wg.Wait()
	})
	return err
}

// push queues a message for the client. It gives up once the session is
// closed.
func (c *Session) push(msg *models.Message) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Session) pushState(event models.SessionEvent) {
	c.push(&models.Message{
		Channel: ChannelEmbed,
		Event:   EvState,
		Data: map[string]interface{}{
			"kind":     event.Kind,
			"snapshot": event.Snapshot,
		},
	})

	select {
	case c.bus <- &Event{Kind: EKSessionEvent, SessionID: c.info.ID, SessionEvent: &event}:
	case <-c.ctx.Done():
	}
}

func (c *Session) pushError(requestID string, err error) {
	c.push(&models.Message{
		Channel:   ChannelEmbed,
		Event:     EvError,
		RequestID: requestID,
		Data:      map[string]interface{}{FieldError: err.Error()},
	})
}

// readStream pumps messages from the websocket connection to the controller.
//
// The application runs readStream in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Session) readStream() {
	defer func() {
		c.log.Debug().Msg("connection closed")
		c.unregister()
		c.wg.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("socket closed")
			} else if err != io.EOF {
				c.log.Trace().Err(err).Msg("read stopped")
			}
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.processIncomingMessage(message); err != nil {
			c.log.Info().Err(err).Msg("failed to process message")
		}
	}
}

// writeToStream pumps messages from the session to the websocket connection.
//
// A goroutine running writeToStream is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Session) writeToStream() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.unregister()
		c.wg.Done()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case message := <-c.send:
			if err := c.writeToClient(message); err != nil {
				c.log.Debug().Err(err).Msg("error when writing to client")
				return
			}
			c.log.Trace().Str("event", message.Event).Msg("write message to connection")

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("failed to ping socket")
				return
			}
		}
	}
}

func (c *Session) writeToClient(message *models.Message) error {
	raw, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "unable to marshal message")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Session) unregister() {
	select {
	case c.bus <- &Event{Kind: EKUnregister, SessionID: c.info.ID}:
	case <-c.ctx.Done():
	}
}

func (c *Session) processIncomingMessage(raw []byte) error {
	msg := new(models.Message)
	if err := json.Unmarshal(raw, msg); err != nil {
		return errors.Wrap(err, "unable to unmarshal json")
	}

	if msg.Channel != ChannelEmbed && msg.Channel != ChannelStatus {
		return errors.Errorf("invalid channel %q", msg.Channel)
	}

	switch msg.Event {
	case EvHandshake:
		c.push(c.stateMessage())

	case EvSetConnection:
		c.controller.SetConnection(models.ConnectionConfig{
			Domain:      msg.Command[FieldDomain],
			Username:    msg.Command[FieldUsername],
			Password:    msg.Command[FieldPassword],
			DashboardID: msg.Command[FieldDashboardID],
		})

	case EvSetUIConfig:
		c.controller.SetUIConfig(msg.Command[FieldUIConfig])

	case EvDisplay:
		// the token exchange blocks on the network; keep reading meanwhile
		go c.display(msg.RequestID)

	case EvReset:
		c.controller.Reset()
		c.push(c.stateMessage())

	case EvApplyTheme:
		if err := c.controller.ApplyTheme(msg.Command[FieldTheme]); err != nil {
			c.pushError(msg.RequestID, err)
		}

	case EvActivated:
		return c.bridge.resolve(msg.RequestID, nil)

	case EvActivationFailed:
		reason := msg.Command[FieldError]
		if reason == "" {
			reason = "activation failed in the browser"
		}
		return c.bridge.resolve(msg.RequestID, errors.New(reason))

	case EvFetchGuestToken:
		go c.serveGuestToken(msg.RequestID, msg.Command[FieldCallID])

	case EvPong:
		c.log.Trace().Msg("client synchronization - pong received")

	default:
		return errors.Errorf("unknown event %q", msg.Event)
	}

	return nil
}

func (c *Session) display(requestID string) {
	err := c.controller.Display()
	switch {
	case err == nil:
	case errors.Is(err, embed.ErrDisplayInProgress):
		c.pushError(requestID, err)
	case errors.Is(err, embed.ErrSuperseded):
		c.log.Debug().Msg("display superseded")
	default:
		// the failure is already on the session snapshot
		c.log.Debug().Err(err).Msg("display failed")
	}
}

func (c *Session) serveGuestToken(requestID, callID string) {
	reply := &models.Message{
		Channel:   ChannelEmbed,
		Event:     EvGuestToken,
		RequestID: requestID,
		Data:      map[string]interface{}{FieldCallID: callID},
	}

	token, err := c.bridge.guestToken(requestID)
	if err != nil {
		reply.Event = EvError
		reply.Data[FieldError] = err.Error()
	} else {
		reply.Data["token"] = string(token)
	}

	c.push(reply)
}

func (c *Session) stateMessage() *models.Message {
	return &models.Message{
		Channel: ChannelEmbed,
		Event:   EvState,
		Data: map[string]interface{}{
			"snapshot":  c.controller.Snapshot(),
			"themes":    embed.Themes(),
			"ui_config": c.controller.UIConfig(),
		},
	}
}
