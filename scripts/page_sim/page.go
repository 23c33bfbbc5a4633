package main

import (
	"context"
	"math/rand"
	"time"

	"embedctl/app/ws"
	"embedctl/embed"
	"embedctl/models"

	"github.com/gorilla/websocket"
	"github.com/lancer-kit/uwe/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Page plays the browser side of an embed session: it asks for a display,
// mounts whatever it is told to and resets after a while.
type Page struct {
	log  *logrus.Entry
	cfg  PageCfg
	conn *websocket.Conn

	activations int
}

func NewPage(cfg PageCfg, log *logrus.Entry) *Page {
	return &Page{cfg: cfg, log: log}
}

func (p *Page) Init() error {
	conn, _, err := websocket.DefaultDialer.Dial(p.cfg.URL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start the ws connection")
	}
	p.conn = conn
	return nil
}

func (p *Page) Run(ctx uwe.Context) error {
	incoming := make(chan *models.Message)
	go p.listen(ctx, incoming)

	p.send(models.Message{Event: ws.EvHandshake})
	p.send(models.Message{Event: ws.EvSetConnection, Command: map[string]string{
		ws.FieldDomain:      p.cfg.Domain,
		ws.FieldUsername:    p.cfg.Username,
		ws.FieldPassword:    p.cfg.Password,
		ws.FieldDashboardID: p.cfg.DashboardID,
	}})
	p.send(models.Message{Event: ws.EvDisplay})

	hold := time.NewTimer(time.Hour)
	hold.Stop()

	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			p.handle(msg, hold)

		case <-hold.C:
			p.send(models.Message{Event: ws.EvReset})
			p.send(models.Message{Event: ws.EvDisplay})

		case <-ctx.Done():
			_ = p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return p.conn.Close()
		}
	}
}

func (p *Page) handle(msg *models.Message, hold *time.Timer) {
	switch msg.Event {
	case ws.EvActivate:
		p.activations++
		if p.cfg.FailEvery > 0 && p.activations%p.cfg.FailEvery == 0 {
			p.send(models.Message{Event: ws.EvActivationFailed, RequestID: msg.RequestID,
				Command: map[string]string{ws.FieldError: "simulated mount failure"}})
			return
		}
		// the SDK asks for a token before it reports the dashboard as ready
		p.send(models.Message{Event: ws.EvFetchGuestToken, RequestID: msg.RequestID})

	case ws.EvGuestToken:
		p.send(models.Message{Event: ws.EvActivated, RequestID: msg.RequestID})

	case ws.EvState:
		snapshot, _ := msg.Data["snapshot"].(map[string]interface{})
		state, _ := snapshot["state"].(string)
		p.log.WithField("state", state).WithField("error", snapshot["error"]).Info("state changed")

		switch models.SessionState(state) {
		case models.StateEmbedded:
			themes := embed.Themes()
			p.send(models.Message{Event: ws.EvApplyTheme,
				Command: map[string]string{ws.FieldTheme: themes[rand.Intn(len(themes))]}})
			hold.Reset(time.Duration(p.cfg.HoldDelay) * time.Millisecond)
		case models.StateIdle:
			if snapshot["error"] != nil {
				hold.Reset(time.Duration(p.cfg.HoldDelay) * time.Millisecond)
			}
		}

	case ws.EvError:
		p.log.WithField("request_id", msg.RequestID).WithField("error", msg.Data[ws.FieldError]).Warn("server error")
	}
}

func (p *Page) listen(ctx context.Context, out chan<- *models.Message) {
	defer close(out)
	for {
		msg := new(models.Message)
		if err := p.conn.ReadJSON(msg); err != nil {
			if ctx.Err() == nil {
				p.log.WithError(err).Error("read failed")
			}
			return
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Page) send(msg models.Message) {
	msg.Channel = ws.ChannelEmbed
	if err := p.conn.WriteJSON(msg); err != nil {
		p.log.WithError(err).WithField("event", msg.Event).Error("write failed")
	}
}
