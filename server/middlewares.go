package server

import (
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/stampede"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/topi314/gosign/internal/ezhttp"
	"github.com/topi314/gosign/internal/flags"
	"github.com/topi314/gosign/internal/httperr"
)

const maxUnix = int(^int32(0))

// cacheKeyFunc keys the template image cache per caller, templates are private.
func (s *Server) cacheKeyFunc(r *http.Request) uint64 {
	return stampede.BytesToHash([]byte(r.Method), []byte(GetClaims(r).UserID()), []byte(chi.URLParam(r, "templateID")))
}

func cacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/image") {
			w.Header().Set(ezhttp.HeaderCacheControl, "private, max-age=300")
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set(ezhttp.HeaderCacheControl, "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// only mutating requests are limited
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}
		remoteAddr, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			remoteAddr = r.RemoteAddr
		}
		if slices.Contains(s.cfg.RateLimit.Whitelist, remoteAddr) {
			next.ServeHTTP(w, r)
			return
		}
		if slices.Contains(s.cfg.RateLimit.Blacklist, remoteAddr) {
			w.Header().Set(ezhttp.HeaderRateLimitLimit, strconv.Itoa(s.cfg.RateLimit.Requests))
			w.Header().Set(ezhttp.HeaderRateLimitRemaining, "0")
			w.Header().Set(ezhttp.HeaderRateLimitReset, strconv.Itoa(maxUnix))
			w.Header().Set(ezhttp.HeaderRetryAfter, strconv.Itoa(maxUnix-int(time.Now().Unix())))
			s.error(w, r, httperr.TooManyRequests(ErrRateLimit))
			return
		}
		s.rateLimiter.Handler(next).ServeHTTP(w, r)
	})
}

func (s *Server) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.Header.Get(ezhttp.HeaderAuthorization)
		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:6]) == "BEARER" {
			tokenString = tokenString[7:]
		} else {
			tokenString = ""
		}
		if tokenString == "" {
			s.error(w, r, httperr.Unauthorized(ErrMissingToken))
			return
		}

		token, err := jwt.ParseSigned(tokenString)
		if err != nil {
			s.error(w, r, httperr.Unauthorized(err))
			return
		}

		var claims Claims
		if err = token.Claims([]byte(s.cfg.JWTSecret), &claims); err != nil {
			s.error(w, r, httperr.Unauthorized(err))
			return
		}
		if err = claims.ValidateWithLeeway(jwt.Expected{Time: time.Now()}, time.Minute); err != nil {
			s.error(w, r, httperr.Unauthorized(err))
			return
		}
		if claims.Subject == "" {
			s.error(w, r, httperr.Unauthorized(ErrMissingSubject))
			return
		}

		next.ServeHTTP(w, SetClaims(r, claims))
	})
}

// RequirePermissions rejects callers whose token misses one of permissions.
func (s *Server) RequirePermissions(permissions ...Permissions) func(http.Handler) http.Handler {
	required := flags.Add(0, permissions...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if flags.Misses(GetClaims(r).Permissions, required) {
				s.error(w, r, httperr.Forbidden(ErrPermissionDenied(required)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
