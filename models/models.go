package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Сущность Заявки (RFQ)
type Request struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	DisplayNumber   int64         `db:"display_number" json:"display_id"`
	BuyerID         int64         `db:"buyer_id" json:"buyer_id"`
	CounterpartyID  *int64        `db:"counterparty_id" json:"counterparty_id"`
	Comment         string        `db:"comment" json:"comment"`
	DeliveryAt      *Date         `db:"delivery_at" json:"delivery_at"`
	DeliveryAddress string        `db:"delivery_address" json:"delivery_address"`
	Status          RequestStatus `db:"status" json:"status"`
	WinnerOfferID   *int64        `db:"winner_offer_id" json:"winner_offer_id"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`

	Items  []RequestItem `db:"-" json:"items"`
	Offers []Offer       `db:"-" json:"offers,omitempty"`
}

// ItemIDs возвращает множество идентификаторов позиций заявки
func (r *Request) ItemIDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(r.Items))
	for _, it := range r.Items {
		ids[it.ID] = struct{}{}
	}
	return ids
}

// Позиция заявки
type RequestItem struct {
	ID        int64     `db:"id" json:"id"`
	RequestID uuid.UUID `db:"request_id" json:"-"`
	Kind      ItemKind  `db:"kind" json:"kind"`
	Category  string    `db:"category" json:"category"`
	Quantity  float64   `db:"quantity" json:"quantity"`
	Unit      string    `db:"unit" json:"unit"`
	Comment   string    `db:"comment" json:"comment"`

	// metal
	Stamp         string   `db:"stamp" json:"stamp"`
	StateStandard string   `db:"state_standard" json:"state_standard"`
	Size          string   `db:"size" json:"size"`
	Thickness     *float64 `db:"thickness" json:"thickness"`
	Length        *float64 `db:"length" json:"length"`
	Width         *float64 `db:"width" json:"width"`
	Diameter      *float64 `db:"diameter" json:"diameter"`
	AllowAnalogs  bool     `db:"allow_analogs" json:"allow_analogs"`

	// generic
	Name string `db:"name" json:"name"`
	Note string `db:"note" json:"note"`
	Dims string `db:"dims" json:"dims"`
}

// InferKind определяет тип позиции: явно указанный тип важнее эвристики
func (it *RequestItem) InferKind() ItemKind {
	if it.Kind.Valid() {
		return it.Kind
	}
	if it.Stamp != "" || it.StateStandard != "" || it.Size != "" ||
		it.Thickness != nil || it.Length != nil || it.Width != nil || it.Diameter != nil {
		return KindMetal
	}
	return KindGeneric
}

// Title - человекочитаемое название позиции для писем и документов
func (it *RequestItem) Title() string {
	if it.Kind == KindGeneric {
		return it.Name
	}
	title := it.Category
	if it.Stamp != "" {
		title += " " + it.Stamp
	}
	if it.Size != "" {
		title += " " + it.Size
	}
	if it.StateStandard != "" {
		title += " (" + it.StateStandard + ")"
	}
	return title
}

// Одноразовый токен поставщика на подачу предложения
type OfferToken struct {
	ID         int64     `db:"id" json:"-"`
	Token      uuid.UUID `db:"token" json:"token"`
	RequestID  uuid.UUID `db:"request_id" json:"request_id"`
	SupplierID int64     `db:"supplier_id" json:"supplier_id"`
	IsUsed     bool      `db:"is_used" json:"is_used"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Сущность Предложения поставщика
type Offer struct {
	ID               int64     `db:"id" json:"id"`
	RequestID        uuid.UUID `db:"request_id" json:"request_id"`
	SupplierID       int64     `db:"supplier_id" json:"supplier_id"`
	Comment          string    `db:"comment" json:"comment"`
	DeliveryOption   string    `db:"delivery_option" json:"delivery_option"`
	VATOption        string    `db:"vat_option" json:"vat_option"`
	InvoicePath      string    `db:"invoice_path" json:"invoice_path"`
	InvoiceExpiresAt Date      `db:"invoice_expires_at" json:"invoice_expires_at"`
	ContractPath     *string   `db:"contract_path" json:"contract_path"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`

	Items    []OfferItem `db:"-" json:"items"`
	Supplier *Supplier   `db:"-" json:"supplier,omitempty"`
}

// Total - сумма предложения: общая цена позиции, либо цена за единицу
func (o *Offer) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.TotalPrice.Valid {
			sum = sum.Add(it.TotalPrice.Decimal)
			continue
		}
		sum = sum.Add(it.Price)
	}
	return sum
}

// Позиция предложения
type OfferItem struct {
	ID             int64               `db:"id" json:"id"`
	OfferID        int64               `db:"offer_id" json:"offer_id"`
	RequestID      uuid.UUID           `db:"request_id" json:"-"`
	RequestItemID  int64               `db:"request_item_id" json:"request_item_id"`
	Price          decimal.Decimal     `db:"price" json:"price"`
	TotalPrice     decimal.NullDecimal `db:"total_price" json:"total_price"`
	IsAnalogue     bool                `db:"is_analogue" json:"is_analogue"`
	AnalogName     string              `db:"analog_name" json:"analog_name"`
	AnalogNote     string              `db:"analog_note" json:"analog_note"`
	AnalogQuantity *float64            `db:"analog_quantity" json:"analog_quantity"`
}

// Поставщик из справочника покупателя
type Supplier struct {
	ID            int64     `db:"id" json:"id"`
	BuyerID       int64     `db:"buyer_id" json:"-"`
	ShortName     string    `db:"short_name" json:"short_name"`
	INN           string    `db:"inn" json:"inn"`
	LegalAddress  string    `db:"legal_address" json:"legal_address"`
	ContactPerson string    `db:"contact_person" json:"contact_person"`
	Phone         string    `db:"phone" json:"phone"`
	Email         string    `db:"email" json:"email"`
	Category      string    `db:"category" json:"category"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Контрагент покупателя (плательщик по договору)
type Counterparty struct {
	ID           int64     `db:"id" json:"id"`
	BuyerID      int64     `db:"buyer_id" json:"-"`
	ShortName    string    `db:"short_name" json:"short_name"`
	LegalAddress string    `db:"legal_address" json:"legal_address"`
	INN          string    `db:"inn" json:"inn"`
	KPP          string    `db:"kpp" json:"kpp"`
	OGRN         string    `db:"ogrn" json:"ogrn"`
	Director     string    `db:"director" json:"director"`
	Phone        string    `db:"phone" json:"phone"`
	Email        string    `db:"email" json:"email"`
	BankAccount  string    `db:"bank_account" json:"bank_account"`
	BankBIK      string    `db:"bank_bik" json:"bank_bik"`
	BankName     string    `db:"bank_name" json:"bank_name"`
	BankCorr     string    `db:"bank_corr" json:"bank_corr"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (c *Counterparty) HasBankDetails() bool {
	return c.BankAccount != "" && c.BankBIK != "" && c.BankName != "" && c.BankCorr != ""
}

// RequestStamp - минимальный срез заявки для статистики
type RequestStamp struct {
	Status    RequestStatus `db:"status"`
	CreatedAt time.Time     `db:"created_at"`
}
