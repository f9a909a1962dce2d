package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/crud/internal/crud"
	webmw "github.com/JonMunkholm/crud/internal/web/middleware"
)

// WithRequestMetadata adds IP and User-Agent to context for mutation logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return crud.ContextWithClient(ctx, webmw.ClientIP(r), r.UserAgent())
}
