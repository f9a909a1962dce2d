package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

const flashSession = "crud_flash"

// flashStore carries one-shot messages across the redirect that follows a
// successful create, update or delete.
type flashStore struct {
	store sessions.Store
}

func newFlashStore(key []byte, secure bool) *flashStore {
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &flashStore{store: cs}
}

// add queues msg for the next page view.
func (f *flashStore) add(w http.ResponseWriter, r *http.Request, msg string) {
	sess, err := f.store.Get(r, flashSession)
	if err != nil {
		// An undecodable cookie yields a fresh session that overwrites it.
		slog.Debug("flash: discarding invalid session", "error", err)
	}
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		slog.Warn("flash: save failed", "error", err)
	}
}

// pop returns and clears the queued messages. Must run before the response
// header is written.
func (f *flashStore) pop(w http.ResponseWriter, r *http.Request) string {
	sess, err := f.store.Get(r, flashSession)
	if err != nil {
		return ""
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	if err := sess.Save(r, w); err != nil {
		slog.Warn("flash: save failed", "error", err)
	}

	msgs := make([]string, 0, len(flashes))
	for _, fl := range flashes {
		if s, ok := fl.(string); ok {
			msgs = append(msgs, s)
		}
	}
	return strings.Join(msgs, " ")
}
