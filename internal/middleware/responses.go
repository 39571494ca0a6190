package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// isAPIPath はAPIエンドポイント宛のリクエストかを判定する。
// API宛の拒否はJSONで、ページ宛の拒否はリダイレクトで返す。
func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// WriteJSONError は{"error": message}形式のエラーレスポンスを書き込む。
// 認証・認可まわりのAPIレスポンスはすべてこの形式に統一する。
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// redirectToLogin は未認証のページリクエストをログイン画面へ302で送る。
// 拒否理由コードとメッセージ、元のパスをクエリに載せる。
func redirectToLogin(w http.ResponseWriter, r *http.Request, code, message string) {
	q := url.Values{}
	q.Set("error", code)
	q.Set("message", message)
	q.Set("redirect", r.URL.Path)
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusFound)
}

// ClientIP はリクエストの送信元IPを返す。
// プロキシ経由の場合はX-Forwarded-Forの先頭エントリを採用する。
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host
}
