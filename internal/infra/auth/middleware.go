package auth

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Credentials — учетная запись для входа на страницу дашборда.
type Credentials struct {
	Username     string
	PasswordHash []byte // bcrypt
}

// Enabled сообщает, включена ли защита.
func (c Credentials) Enabled() bool {
	return c.Username != ""
}

// Verify сверяет логин и пароль. Логин сравниваем за постоянное время.
func (c Credentials) Verify(username, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(password)) == nil
}

// NewMiddleware включает HTTP Basic Auth. Публичные роуты регистрируются вне группы с ним.
func NewMiddleware(creds Credentials, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !creds.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || !creds.Verify(user, pass) {
				if ok {
					logger.Warn("auth failure", zap.String("user", user), zap.String("remote", r.RemoteAddr))
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="secure-access-dashboard", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
