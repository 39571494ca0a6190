// Package rbac はロールベースのアクセス制御ポリシーを提供する。
// ポリシーはI/Oも時計も持たない純粋なテーブル評価であり、同じ入力には
// 常に同じ判定を返す。
package rbac

import "github.com/hitoshi/ichiba/internal/model"

// Permission は操作権限を表す閉じた型。
type Permission string

// 権限の定義。<リソース>:<操作> の形を取る。
const (
	PermProductsRead   Permission = "products:read"
	PermProductsCreate Permission = "products:create"
	PermProductsUpdate Permission = "products:update"
	PermProductsDelete Permission = "products:delete"

	PermOrdersRead   Permission = "orders:read"
	PermOrdersUpdate Permission = "orders:update"
	PermOrdersDelete Permission = "orders:delete"

	PermUsersRead   Permission = "users:read"
	PermUsersCreate Permission = "users:create"
	PermUsersUpdate Permission = "users:update"
	PermUsersDelete Permission = "users:delete"

	PermAdminRead   Permission = "admin:read"
	PermAdminWrite  Permission = "admin:write"
	PermAdminDelete Permission = "admin:delete"

	PermAnalyticsRead Permission = "analytics:read"

	PermContentRead   Permission = "content:read"
	PermContentWrite  Permission = "content:write"
	PermContentDelete Permission = "content:delete"

	PermCartUse     Permission = "cart:use"
	PermWishlistUse Permission = "wishlist:use"
)

// rolePermissions はロール→権限セットの固定マッピング。
// ロールはmodel.Roleの閉じた列挙であり、ここに現れないロールは存在しない。
var rolePermissions = map[model.Role][]Permission{
	model.RoleSuperAdmin: {
		PermProductsRead, PermProductsCreate, PermProductsUpdate, PermProductsDelete,
		PermOrdersRead, PermOrdersUpdate, PermOrdersDelete,
		PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
		PermAdminRead, PermAdminWrite, PermAdminDelete,
		PermAnalyticsRead,
		PermContentRead, PermContentWrite, PermContentDelete,
		PermCartUse, PermWishlistUse,
	},
	model.RoleAdmin: {
		PermProductsRead, PermProductsCreate, PermProductsUpdate, PermProductsDelete,
		PermOrdersRead, PermOrdersUpdate,
		PermUsersRead, PermUsersUpdate,
		PermAdminRead, PermAdminWrite,
		PermAnalyticsRead,
		PermContentRead, PermContentWrite, PermContentDelete,
	},
	model.RoleCustomer: {
		PermProductsRead,
		PermOrdersRead,
		PermUsersRead,
		PermContentRead,
		PermCartUse, PermWishlistUse,
	},
}

// PermissionsOf はロールに付与された権限の一覧を返す。
// 返り値の変更が内部テーブルへ波及しないようコピーを返す。
func PermissionsOf(role model.Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission はロールが指定権限を持つかを返す。
func HasPermission(role model.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
