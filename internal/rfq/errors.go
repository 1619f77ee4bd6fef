package rfq

import "errors"

// Kind - класс ошибки, видимый клиенту
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindValidation
	KindBadRequest
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: "not authenticated"}
	ErrForbidden    = &Error{Kind: KindForbidden, Code: "forbidden", Message: "forbidden"}
	ErrBuyersOnly   = &Error{Kind: KindForbidden, Code: "buyers_only", Message: "only buyers can do this"}

	ErrRequestNotFound      = &Error{Kind: KindNotFound, Code: "request_not_found", Message: "request not found"}
	ErrOfferNotFound        = &Error{Kind: KindNotFound, Code: "offer_not_found", Message: "offer not found for this request"}
	ErrSupplierNotFound     = &Error{Kind: KindNotFound, Code: "supplier_not_found", Message: "supplier not found"}
	ErrCounterpartyNotFound = &Error{Kind: KindNotFound, Code: "counterparty_not_found", Message: "counterparty not found"}

	// три различимых отказа по токену: клиент ведёт себя по-разному в каждом случае
	ErrTokenNotFound = &Error{Kind: KindNotFound, Code: "token_not_found", Message: "offer token not found"}
	ErrTokenMismatch = &Error{Kind: KindBadRequest, Code: "token_mismatch", Message: "offer token does not belong to this request"}
	ErrTokenUsed     = &Error{Kind: KindBadRequest, Code: "token_used", Message: "offer token has already been used"}

	ErrOfferExists    = &Error{Kind: KindConflict, Code: "offer_exists", Message: "an offer has already been submitted by this supplier"}
	ErrAlreadyAwarded = &Error{Kind: KindConflict, Code: "already_awarded", Message: "request has already been awarded"}
	ErrRequestClosed  = &Error{Kind: KindConflict, Code: "request_closed", Message: "request is closed for offers"}
	ErrNotAwarded     = &Error{Kind: KindConflict, Code: "not_awarded", Message: "request has no winning offer yet"}

	ErrSupplierInUse     = &Error{Kind: KindConflict, Code: "supplier_in_use", Message: "supplier has offer tokens or offers"}
	ErrCounterpartyInUse = &Error{Kind: KindConflict, Code: "counterparty_in_use", Message: "counterparty is used by requests"}

	ErrForeignItem = &Error{Kind: KindValidation, Code: "foreign_item", Message: "offer item references an item of another request"}
)

// ValidationError - ошибка валидации входных данных
func ValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "validation", Message: msg}
}

// KindOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
