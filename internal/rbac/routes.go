package rbac

import (
	"strings"

	"github.com/hitoshi/ichiba/internal/model"
)

// RouteRule は保護対象ルートと要求権限の対応を表す。
// Methodは単一のHTTPメソッドまたは全メソッドを表す"*"。
// PathPrefixは前方一致で評価される。
type RouteRule struct {
	Method     string
	PathPrefix string
	Required   []Permission
}

// routeRules は保護対象ルートの静的テーブル。
// 宣言順に評価し、最初にマッチした規則が要求権限を決める。
// どの規則にもマッチせず公開リストにもないパスは暗黙の拒否となる（fail closed）。
var routeRules = []RouteRule{
	// 管理API。メソッドごとに要求権限が異なる。
	{Method: "GET", PathPrefix: "/api/admin", Required: []Permission{PermAdminRead}},
	{Method: "POST", PathPrefix: "/api/admin", Required: []Permission{PermAdminWrite}},
	{Method: "PUT", PathPrefix: "/api/admin", Required: []Permission{PermAdminWrite}},
	{Method: "PATCH", PathPrefix: "/api/admin", Required: []Permission{PermAdminWrite}},
	{Method: "DELETE", PathPrefix: "/api/admin", Required: []Permission{PermAdminDelete}},

	// 商品カタログの書き込み。読み取りは公開リスト側で許可される。
	{Method: "POST", PathPrefix: "/api/products", Required: []Permission{PermProductsCreate}},
	{Method: "PUT", PathPrefix: "/api/products", Required: []Permission{PermProductsUpdate}},
	{Method: "DELETE", PathPrefix: "/api/products", Required: []Permission{PermProductsDelete}},

	// 分析。
	{Method: "GET", PathPrefix: "/api/analytics", Required: []Permission{PermAnalyticsRead}},

	// カート・ウィッシュリスト・注文のAPI。
	{Method: "*", PathPrefix: "/api/cart", Required: []Permission{PermCartUse}},
	{Method: "*", PathPrefix: "/api/wishlist", Required: []Permission{PermWishlistUse}},
	{Method: "*", PathPrefix: "/api/checkout", Required: []Permission{PermCartUse}},
	{Method: "GET", PathPrefix: "/api/orders", Required: []Permission{PermOrdersRead}},
	{Method: "PUT", PathPrefix: "/api/orders", Required: []Permission{PermOrdersUpdate}},
	{Method: "DELETE", PathPrefix: "/api/orders", Required: []Permission{PermOrdersDelete}},
	{Method: "*", PathPrefix: "/api/profile", Required: []Permission{PermUsersRead}},
	{Method: "GET", PathPrefix: "/api/auth/me", Required: []Permission{PermUsersRead}},
	{Method: "POST", PathPrefix: "/api/auth/logout", Required: []Permission{PermUsersRead}},

	// 保護対象ページ。
	{Method: "GET", PathPrefix: "/admin", Required: []Permission{PermAdminRead}},
	{Method: "GET", PathPrefix: "/cart", Required: []Permission{PermCartUse}},
	{Method: "GET", PathPrefix: "/wishlist", Required: []Permission{PermWishlistUse}},
	{Method: "GET", PathPrefix: "/checkout", Required: []Permission{PermCartUse}},
	{Method: "GET", PathPrefix: "/orders", Required: []Permission{PermOrdersRead}},
	{Method: "GET", PathPrefix: "/profile", Required: []Permission{PermUsersRead}},
}

// publicRoute は認証を一切要求しない公開エンドポイント。
// パス前方一致に加えてメソッドで絞る。旧実装は/api/productsをメソッドに
// かかわらず公開していたが、それでは同一プレフィックス上の書き込みまで
// 公開されてしまうため、公開リストはメソッド単位に限定する。
type publicRoute struct {
	Method     string
	PathPrefix string
}

var publicRoutes = []publicRoute{
	{Method: "POST", PathPrefix: "/api/auth/login"},
	{Method: "POST", PathPrefix: "/api/auth/register"},
	{Method: "POST", PathPrefix: "/api/auth/refresh"},
	{Method: "POST", PathPrefix: "/api/auth/verify-email"},
	{Method: "POST", PathPrefix: "/api/auth/request-password-reset"},
	{Method: "POST", PathPrefix: "/api/auth/reset-password"},

	// 公開カタログの読み取り。
	{Method: "GET", PathPrefix: "/api/products"},
	{Method: "GET", PathPrefix: "/api/categories"},
	{Method: "GET", PathPrefix: "/api/recommendations"},

	// 運用エンドポイント。
	{Method: "GET", PathPrefix: "/health"},
	{Method: "GET", PathPrefix: "/metrics"},

	// 公開ページ。
	{Method: "GET", PathPrefix: "/login"},
	{Method: "GET", PathPrefix: "/register"},
	{Method: "GET", PathPrefix: "/forgot-password"},
	{Method: "GET", PathPrefix: "/reset-password"},
	{Method: "GET", PathPrefix: "/products"},
	{Method: "GET", PathPrefix: "/product/"},
	{Method: "GET", PathPrefix: "/categories"},
	{Method: "GET", PathPrefix: "/category/"},
	{Method: "GET", PathPrefix: "/about"},
	{Method: "GET", PathPrefix: "/contact"},
	{Method: "GET", PathPrefix: "/faq"},
	{Method: "GET", PathPrefix: "/favicon.ico"},
	{Method: "GET", PathPrefix: "/images/"},
	{Method: "GET", PathPrefix: "/static/"},
}

// rootPublic はルートパスのみの特例。HasPrefix("/")は全パスに一致するため
// テーブルには載せず個別に扱う。
const rootPath = "/"

// IsPublic はメソッドとパスが公開エンドポイントに該当するかを返す。
// 公開エンドポイントは認可を完全にバイパスし、RbacPolicyに到達しない。
func IsPublic(method, path string) bool {
	if method == "GET" && path == rootPath {
		return true
	}
	for _, r := range publicRoutes {
		if r.Method == method && strings.HasPrefix(path, r.PathPrefix) {
			return true
		}
	}
	return false
}

// Decision は認可判定の結果。
type Decision struct {
	Allowed bool
	// Missing はロールに不足している権限。監査ログに記録される。
	Missing []Permission
}

// Authorize は(role, method, path)に対する認可判定を返す。
// ルールテーブルを宣言順に評価し、最初のマッチの要求権限すべてをロールが
// 持つ場合のみ許可する。マッチする規則がないパスは拒否する。
// I/Oも時計も参照しない決定的な純関数である。
func Authorize(role model.Role, method, path string) Decision {
	for _, rule := range routeRules {
		if rule.Method != "*" && rule.Method != method {
			continue
		}
		if !strings.HasPrefix(path, rule.PathPrefix) {
			continue
		}

		var missing []Permission
		for _, p := range rule.Required {
			if !HasPermission(role, p) {
				missing = append(missing, p)
			}
		}
		return Decision{Allowed: len(missing) == 0, Missing: missing}
	}

	// 規則なし・公開リスト外は暗黙の拒否
	return Decision{Allowed: false}
}
