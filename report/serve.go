package report

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"capybara/logging"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Reloader tells every connected index page to reload itself.
type Reloader struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewReloader() *Reloader {
	return &Reloader{conns: map[*websocket.Conn]struct{}{}}
}

func (r *Reloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logging.FromContext(req.Context()).Debug("livereload upgrade failed", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.mu.Unlock()

	// pages never send anything, reading only notices the close
	go func() {
		defer r.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Reloader) drop(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, conn)
	conn.Close()
}

// Reload notifies all pages and returns how many were reached.
func (r *Reloader) Reload() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for conn := range r.conns {
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			delete(r.conns, conn)
			conn.Close()
			continue
		}
		n++
	}
	return n
}

// Close disconnects all pages.
func (r *Reloader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conn := range r.conns {
		conn.Close()
		delete(r.conns, conn)
	}
}

// Handler serves the files in dir, and the livereload socket when reload is
// not nil.
func Handler(dir string, reload *Reloader) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(dir)))
	if reload != nil {
		mux.Handle("/livereload", reload)
	}
	return mux
}

// Serve serves the report until ctx is cancelled. ready, when set, is called
// with the bound address once the listener is open.
func Serve(ctx context.Context, dir string, addr string, reload *Reloader, ready func(addr string)) error {
	log := logging.FromContext(ctx)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           Handler(dir, reload),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		if reload != nil {
			reload.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", zap.Error(err))
		}
	}()

	bound := listener.Addr().String()
	log.Info("serving report", zap.String("url", "http://"+bound))
	if ready != nil {
		ready(bound)
	}

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
