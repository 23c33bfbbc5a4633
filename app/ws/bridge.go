package ws

import (
	"context"
	"sync"

	"embedctl/embed"
	"embedctl/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrUnknownRequest = errors.New("unknown activation request")
	ErrNoDashboard    = errors.New("no dashboard for request")
)

type activationResult struct {
	err error
}

// bridgeEmbedder activates dashboards in the browser on the other end of the
// websocket. The page runs the embedding SDK and answers every `activate`
// with `activated` or `activation_failed` carrying the same request id.
type bridgeEmbedder struct {
	send func(*models.Message)

	mutex   sync.Mutex
	pending map[string]chan activationResult
	sources map[string]func() (models.GuestToken, error)
}

func newBridgeEmbedder(send func(*models.Message)) *bridgeEmbedder {
	return &bridgeEmbedder{
		send:    send,
		pending: map[string]chan activationResult{},
		sources: map[string]func() (models.GuestToken, error){},
	}
}

func (b *bridgeEmbedder) Activate(ctx context.Context, opts embed.EmbedOptions) (embed.Handle, error) {
	requestID := uuid.New().String()
	result := make(chan activationResult, 1)

	b.mutex.Lock()
	b.pending[requestID] = result
	b.sources[requestID] = opts.FetchGuestToken
	b.mutex.Unlock()

	b.send(&models.Message{
		Channel:   ChannelEmbed,
		Event:     EvActivate,
		RequestID: requestID,
		Data:      map[string]interface{}{"options": opts},
	})

	select {
	case res := <-result:
		if res.err != nil {
			b.forget(requestID)
			return nil, res.err
		}
		return &bridgeHandle{bridge: b, requestID: requestID}, nil

	case <-ctx.Done():
		b.forget(requestID)
		return nil, errors.Wrap(ctx.Err(), "session closed before activation")
	}
}

// resolve delivers the browser's answer to a pending activation.
func (b *bridgeEmbedder) resolve(requestID string, err error) error {
	b.mutex.Lock()
	result, ok := b.pending[requestID]
	delete(b.pending, requestID)
	b.mutex.Unlock()

	if !ok {
		return ErrUnknownRequest
	}
	result <- activationResult{err: err}
	return nil
}

// guestToken serves the SDK's fetchGuestToken callback for a dashboard.
func (b *bridgeEmbedder) guestToken(requestID string) (models.GuestToken, error) {
	b.mutex.Lock()
	source, ok := b.sources[requestID]
	b.mutex.Unlock()

	if !ok || source == nil {
		return "", ErrNoDashboard
	}
	return source()
}

func (b *bridgeEmbedder) forget(requestID string) {
	b.mutex.Lock()
	delete(b.pending, requestID)
	delete(b.sources, requestID)
	b.mutex.Unlock()
}

type bridgeHandle struct {
	bridge    *bridgeEmbedder
	requestID string
}

func (h *bridgeHandle) SetThemeConfig(cfg embed.ThemeConfig) error {
	h.bridge.send(&models.Message{
		Channel:   ChannelEmbed,
		Event:     EvSetTheme,
		RequestID: h.requestID,
		Data:      map[string]interface{}{FieldTheme: cfg},
	})
	return nil
}

func (h *bridgeHandle) Unmount() error {
	h.bridge.forget(h.requestID)
	h.bridge.send(&models.Message{
		Channel:   ChannelEmbed,
		Event:     EvUnmount,
		RequestID: h.requestID,
	})
	return nil
}
