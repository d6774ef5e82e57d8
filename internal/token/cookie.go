package token

import "net/http"

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "auth_token"

// CookieSettings はセッションCookieの属性を保持する。
type CookieSettings struct {
	Secure bool
	Domain string
}

// SetSessionCookie はセッショントークンをHTTP Only Cookieとして設定する。
// SameSite=StrictによりクロスサイトリクエストでのCookie送信を防ぐ。
func SetSessionCookie(w http.ResponseWriter, tokenString string, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tokenString,
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearSessionCookie はセッションCookieを無効化する。
func ClearSessionCookie(w http.ResponseWriter, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
