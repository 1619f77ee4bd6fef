package rfq

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"metaltrade/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type CreateRequestInput struct {
	Items           []RequestItemInput `json:"items" validate:"required,min=1,max=500,dive"`
	Comment         string             `json:"comment" validate:"max=2000"`
	DeliveryAt      *models.Date       `json:"delivery_at"`
	DeliveryAddress string             `json:"delivery_address" validate:"max=500"`
	CounterpartyID  *int64             `json:"counterparty_id" validate:"omitempty,gt=0"`
}

type RequestItemInput struct {
	Kind     string  `json:"kind" validate:"omitempty,oneof=metal generic"`
	Category string  `json:"category" validate:"max=255"`
	Quantity float64 `json:"quantity" validate:"gte=0"`
	Unit     string  `json:"unit" validate:"max=32"`
	Comment  string  `json:"comment" validate:"max=1000"`

	Stamp         string   `json:"stamp" validate:"max=100"`
	StateStandard string   `json:"state_standard" validate:"max=100"`
	Size          string   `json:"size" validate:"max=100"`
	Thickness     *float64 `json:"thickness" validate:"omitempty,gt=0"`
	Length        *float64 `json:"length" validate:"omitempty,gt=0"`
	Width         *float64 `json:"width" validate:"omitempty,gt=0"`
	Diameter      *float64 `json:"diameter" validate:"omitempty,gt=0"`
	AllowAnalogs  *bool    `json:"allow_analogs"`

	Name string `json:"name" validate:"max=255"`
	Note string `json:"note" validate:"max=1000"`
	Dims string `json:"dims" validate:"max=255"`
}

// toModel переносит поля в позицию и определяет её тип
func (in RequestItemInput) toModel() models.RequestItem {
	it := models.RequestItem{
		Kind:          models.ItemKind(strings.ToLower(strings.TrimSpace(in.Kind))),
		Category:      strings.TrimSpace(in.Category),
		Quantity:      in.Quantity,
		Unit:          strings.TrimSpace(in.Unit),
		Comment:       strings.TrimSpace(in.Comment),
		Stamp:         strings.TrimSpace(in.Stamp),
		StateStandard: strings.TrimSpace(in.StateStandard),
		Size:          strings.TrimSpace(in.Size),
		Thickness:     in.Thickness,
		Length:        in.Length,
		Width:         in.Width,
		Diameter:      in.Diameter,
		Name:          strings.TrimSpace(in.Name),
		Note:          strings.TrimSpace(in.Note),
		Dims:          strings.TrimSpace(in.Dims),
	}
	if in.AllowAnalogs != nil {
		it.AllowAnalogs = *in.AllowAnalogs
	}
	it.Kind = it.InferKind()
	if it.Kind == models.KindGeneric {
		// металлические поля у generic не храним
		it.Stamp, it.StateStandard, it.Size = "", "", ""
		it.Thickness, it.Length, it.Width, it.Diameter = nil, nil, nil, nil
	}
	return it
}

type SendInput struct {
	Groups []SendGroup `json:"groups" validate:"required,min=1,dive"`
}

// SendGroup - группа рассылки: одни и те же позиции уходят выбранным поставщикам
type SendGroup struct {
	GroupKey       string   `json:"group_key" validate:"max=255"`
	CategoryTitles []string `json:"category_titles"`
	SupplierIDs    []int64  `json:"supplier_ids" validate:"required,min=1,dive,gt=0"`
	ManualEmails   []string `json:"manual_emails" validate:"dive,omitempty,email"`
	ItemIDs        []int64  `json:"item_ids" validate:"dive,gt=0"`
	EmailHeader    string   `json:"email_header" validate:"max=5000"`
	EmailFooter    string   `json:"email_footer" validate:"max=5000"`
}

type SubmitOfferInput struct {
	Comment          string           `json:"comment" validate:"max=2000"`
	DeliveryOption   string           `json:"delivery_option" validate:"max=100"`
	VATOption        string           `json:"vat_option" validate:"max=100"`
	InvoiceExpiresAt models.Date      `json:"invoice_expires_at"`
	Items            []OfferItemInput `json:"items" validate:"required,min=1,dive"`

	// пути к уже сохранённым файлам поставщика
	InvoicePath  string  `json:"-"`
	ContractPath *string `json:"-"`
}

type OfferItemInput struct {
	RequestItemID int64               `json:"request_item_id" validate:"required,gt=0"`
	Price         decimal.Decimal     `json:"price"`
	TotalPrice    decimal.NullDecimal `json:"total_price"`
	IsAnalogue    bool                `json:"is_analogue"`
	AnalogName    string              `json:"analog_name" validate:"max=255"`
	AnalogNote    string              `json:"analog_note" validate:"max=1000"`
	Quantity      *float64            `json:"quantity" validate:"omitempty,gt=0"`
}

type SupplierInput struct {
	ShortName     string `json:"short_name" validate:"required,max=255"`
	INN           string `json:"inn" validate:"required,inn"`
	LegalAddress  string `json:"legal_address" validate:"max=500"`
	ContactPerson string `json:"contact_person" validate:"max=255"`
	Phone         string `json:"phone" validate:"max=50"`
	Email         string `json:"email" validate:"required,email"`
	Category      string `json:"category" validate:"required,max=100"`
}

type CounterpartyInput struct {
	ShortName    string `json:"short_name" validate:"required,max=255"`
	LegalAddress string `json:"legal_address" validate:"required,max=500"`
	INN          string `json:"inn" validate:"required,inn"`
	KPP          string `json:"kpp" validate:"omitempty,len=9,numeric"`
	OGRN         string `json:"ogrn" validate:"omitempty,numeric,min=13,max=15"`
	Director     string `json:"director" validate:"required,max=255"`
	Phone        string `json:"phone" validate:"required,max=50"`
	Email        string `json:"email" validate:"required,email"`
	BankAccount  string `json:"bank_account" validate:"omitempty,numeric,max=32"`
	BankBIK      string `json:"bank_bik" validate:"omitempty,len=9,numeric"`
	BankName     string `json:"bank_name" validate:"max=255"`
	BankCorr     string `json:"bank_corr" validate:"omitempty,numeric,max=20"`
}

type ListFilter struct {
	Status models.RequestStatus
}

type StatsQuery struct {
	From   time.Time
	To     time.Time
	Period string
}

var innRe = regexp.MustCompile(`^(\d{10}|\d{12})$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("inn", func(fl validator.FieldLevel) bool {
		return innRe.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct превращает ошибки валидатора в ValidationError с понятным текстом
func (e *Engine) validateStruct(s any) error {
	err := e.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return ValidationError(err.Error())
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return ValidationError(fmt.Sprintf("field %s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
	}
	return ValidationError(fmt.Sprintf("field %s failed %s", fe.Namespace(), fe.Tag()))
}
