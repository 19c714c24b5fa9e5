// Package client talks to a running vr-screenshotter: the remote socket
// protocol for captures and the ops HTTP API for status.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Response mirrors the remote protocol reply.
type Response struct {
	Nonce      string `json:"nonce"`
	Image      string `json:"image,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FilePath   string `json:"filePath,omitempty"`
	FilePathVR string `json:"filePathVR,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed reports whether the reply carries an error instead of an image.
func (r Response) Failed() bool { return r.Error != "" || (r.Message != "" && r.Image == "") }

type request struct {
	Nonce string `json:"nonce"`
	Delay int    `json:"delay,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Remote is a connection to the remote socket server. Replies are routed to
// callers by nonce; replies nobody waits for land on Unmatched.
type Remote struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	mu      sync.Mutex
	waiters map[string]chan Response
	err     error

	unmatched chan Response
	done      chan struct{}
}

// Dial connects to ws://host:port/.
func Dial(ctx context.Context, url string) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	r := &Remote{
		conn:      conn,
		waiters:   make(map[string]chan Response),
		unmatched: make(chan Response, 16),
		done:      make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

// Capture asks for a screenshot and waits for the reply with the same nonce.
func (r *Remote) Capture(ctx context.Context, nonce string, delay int, tag string) (Response, error) {
	if nonce == "" {
		return Response{}, errors.New("nonce is required")
	}
	ch := make(chan Response, 1)
	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return Response{}, r.err
	}
	r.waiters[nonce] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.waiters, nonce)
		r.mu.Unlock()
	}()

	if err := r.Send(request{Nonce: nonce, Delay: delay, Tag: tag}); err != nil {
		return Response{}, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-r.done:
		return Response{}, r.closedErr()
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Send writes v as a JSON text frame.
func (r *Remote) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.SendRaw(data)
}

func (r *Remote) SendRaw(data []byte) error {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

// Unmatched delivers replies without a waiting Capture call, such as
// broadcasts and errors for undecodable requests.
func (r *Remote) Unmatched() <-chan Response { return r.unmatched }

func (r *Remote) Close() error {
	r.wmu.Lock()
	_ = r.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	r.wmu.Unlock()
	err := r.conn.Close()
	<-r.done
	return err
}

func (r *Remote) readLoop() {
	defer close(r.done)
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			r.err = fmt.Errorf("connection closed: %w", err)
			r.mu.Unlock()
			return
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		r.mu.Lock()
		ch, ok := r.waiters[resp.Nonce]
		r.mu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
			continue
		}
		select {
		case r.unmatched <- resp:
		default:
		}
	}
}

func (r *Remote) closedErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Ops is a client for the ops HTTP API.
type Ops struct {
	BaseURL string
	HTTP    *http.Client
}

func NewOps(baseURL string) *Ops { return &Ops{BaseURL: baseURL, HTTP: http.DefaultClient} }

type Status struct {
	RuntimeReady     bool   `json:"runtimeReady"`
	AppID            string `json:"appId"`
	DashboardVisible bool   `json:"dashboardVisible"`
	PendingCaptures  int    `json:"pendingCaptures"`
	Server           struct {
		Running   bool  `json:"running"`
		Sessions  int   `json:"sessions"`
		Received  int64 `json:"received"`
		Delivered int64 `json:"delivered"`
		Dropped   int64 `json:"dropped"`
	} `json:"server"`
}

func (c *Ops) Status(ctx context.Context) (Status, error) {
	var out Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/status", nil)
	if err != nil {
		return out, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("status: unexpected %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}
