package auth

import (
	"context"
	"fmt"

	"metaltrade/models"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal - аутентифицированный пользователь
type Principal struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (p Principal) IsBuyer() bool {
	return p.Role == RoleBuyer
}

// CanCreateRequest - заявки создают только покупатели
func CanCreateRequest(p Principal) bool {
	return p.IsBuyer()
}

// CanManageRequest - владелец заявки
func CanManageRequest(p Principal, r *models.Request) bool {
	return p.IsBuyer() && r != nil && r.BuyerID == p.UserID
}

// CanViewRequest - владелец или администратор
func CanViewRequest(p Principal, r *models.Request) bool {
	return CanManageRequest(p, r) || p.Role == RoleAdmin
}

// CanAward - выбрать победителя может только владелец, пока заявка не закрыта
func CanAward(p Principal, r *models.Request) bool {
	return CanManageRequest(p, r) && r.Status != models.StatusAwarded
}

// CanManageDirectory - справочники поставщиков и контрагентов ведут покупатели
func CanManageDirectory(p Principal) bool {
	return p.IsBuyer()
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
