package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asperus/agenda/internal/booking"
	"github.com/asperus/agenda/internal/changefeed"
)

const handshakeTimeout = 10 * time.Second

// wsFeed is a change feed subscription over the /feed socket. Events are
// coalesced: a pending one is never queued twice.
type wsFeed struct {
	conn    *websocket.Conn
	events  chan changefeed.Event
	done    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
}

// Subscribe opens the feed socket for id and waits for the server to confirm
// the subscription before returning.
func (c *Client) Subscribe(ctx context.Context, id booking.Identity) (booking.Feed, error) {
	u, err := c.feedURL(id)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: dial feed: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var hello changefeed.Frame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apiclient: read feed handshake: %w", err)
	}
	if hello.Type != "subscribed" {
		conn.Close()
		if hello.Text != "" {
			return nil, fmt.Errorf("apiclient: feed refused: %s", hello.Text)
		}
		return nil, fmt.Errorf("apiclient: unexpected feed frame %q", hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	f := &wsFeed{
		conn:   conn,
		events: make(chan changefeed.Event, 1),
		done:   make(chan struct{}),
	}
	go f.read(c)
	go func() {
		select {
		case <-ctx.Done():
			_ = f.Close()
		case <-f.done:
		}
	}()
	return f, nil
}

func (c *Client) feedURL(id booking.Identity) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("apiclient: parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/feed"
	q := url.Values{}
	q.Set("store_id", id.StoreID)
	if id.Professional != "" {
		q.Set("professional", id.Professional)
	}
	if from := id.Window.Start(); from != "" {
		q.Set("from", from)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *wsFeed) Events() <-chan changefeed.Event { return f.events }

// Close ends the subscription. It is safe to call more than once.
func (f *wsFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		f.writeMu.Lock()
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		f.writeMu.Unlock()
		err = f.conn.Close()
	})
	return err
}

func (f *wsFeed) read(c *Client) {
	defer close(f.events)
	for {
		var frame changefeed.Frame
		if err := f.conn.ReadJSON(&frame); err != nil {
			select {
			case <-f.done:
			default:
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Warn("feed connection lost", "error", err)
				}
			}
			return
		}
		switch frame.Type {
		case "change":
			evt := changefeed.Event{Kind: changefeed.KindReservationChanged}
			if frame.Event != nil {
				evt = *frame.Event
			}
			select {
			case f.events <- evt:
			default:
			}
		case "ping":
			f.writeMu.Lock()
			err := f.conn.WriteJSON(changefeed.Frame{Type: "pong"})
			f.writeMu.Unlock()
			if err != nil {
				return
			}
		case "error":
			c.logger.Warn("feed error", "text", frame.Text)
		}
	}
}
