package rfq

import (
	"context"
	"strings"

	"metaltrade/internal/auth"
	"metaltrade/models"
)

// Справочники покупателя. Чужая запись неотличима от отсутствующей.

func (e *Engine) CreateSupplier(ctx context.Context, p auth.Principal, in SupplierInput) (*models.Supplier, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	s := supplierFromInput(in)
	s.BuyerID = p.UserID
	if err := e.store.CreateSupplier(ctx, s); err != nil {
		return nil, err
	}
	e.logger.WithField("supplier_id", s.ID).Info("Supplier created")
	return s, nil
}

func (e *Engine) ListSuppliers(ctx context.Context, p auth.Principal, category string) ([]models.Supplier, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	list, err := e.store.ListSuppliers(ctx, p.UserID, strings.TrimSpace(category))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Supplier{}
	}
	return list, nil
}

func (e *Engine) UpdateSupplier(ctx context.Context, p auth.Principal, id int64, in SupplierInput) (*models.Supplier, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	current, err := e.ownSupplier(ctx, p, id)
	if err != nil {
		return nil, err
	}
	s := supplierFromInput(in)
	s.ID = current.ID
	s.BuyerID = current.BuyerID
	s.CreatedAt = current.CreatedAt
	if err := e.store.UpdateSupplier(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) DeleteSupplier(ctx context.Context, p auth.Principal, id int64) error {
	if !auth.CanManageDirectory(p) {
		return ErrBuyersOnly
	}
	return e.store.DeleteSupplier(ctx, p.UserID, id)
}

func (e *Engine) ownSupplier(ctx context.Context, p auth.Principal, id int64) (*models.Supplier, error) {
	s, err := e.store.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.BuyerID != p.UserID {
		return nil, ErrSupplierNotFound
	}
	return s, nil
}

func supplierFromInput(in SupplierInput) *models.Supplier {
	return &models.Supplier{
		ShortName:     strings.TrimSpace(in.ShortName),
		INN:           strings.TrimSpace(in.INN),
		LegalAddress:  strings.TrimSpace(in.LegalAddress),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Category:      strings.TrimSpace(in.Category),
	}
}

func (e *Engine) CreateCounterparty(ctx context.Context, p auth.Principal, in CounterpartyInput) (*models.Counterparty, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	c := counterpartyFromInput(in)
	c.BuyerID = p.UserID
	if err := e.store.CreateCounterparty(ctx, c); err != nil {
		return nil, err
	}
	e.logger.WithField("counterparty_id", c.ID).Info("Counterparty created")
	return c, nil
}

func (e *Engine) ListCounterparties(ctx context.Context, p auth.Principal) ([]models.Counterparty, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	list, err := e.store.ListCounterparties(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Counterparty{}
	}
	return list, nil
}

func (e *Engine) GetCounterparty(ctx context.Context, p auth.Principal, id int64) (*models.Counterparty, error) {
	if !auth.CanManageDirectory(p) {
		return nil, ErrBuyersOnly
	}
	c, err := e.store.GetCounterparty(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.BuyerID != p.UserID {
		return nil, ErrCounterpartyNotFound
	}
	return c, nil
}

func (e *Engine) UpdateCounterparty(ctx context.Context, p auth.Principal, id int64, in CounterpartyInput) (*models.Counterparty, error) {
	current, err := e.GetCounterparty(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}
	c := counterpartyFromInput(in)
	c.ID = current.ID
	c.BuyerID = current.BuyerID
	c.CreatedAt = current.CreatedAt
	if err := e.store.UpdateCounterparty(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) DeleteCounterparty(ctx context.Context, p auth.Principal, id int64) error {
	if !auth.CanManageDirectory(p) {
		return ErrBuyersOnly
	}
	return e.store.DeleteCounterparty(ctx, p.UserID, id)
}

// CounterpartyHasBankDetails - заполнены ли реквизиты, без которых не выставить счёт
func (e *Engine) CounterpartyHasBankDetails(ctx context.Context, p auth.Principal, id int64) (bool, error) {
	c, err := e.GetCounterparty(ctx, p, id)
	if err != nil {
		return false, err
	}
	return c.HasBankDetails(), nil
}

func counterpartyFromInput(in CounterpartyInput) *models.Counterparty {
	return &models.Counterparty{
		ShortName:    strings.TrimSpace(in.ShortName),
		LegalAddress: strings.TrimSpace(in.LegalAddress),
		INN:          strings.TrimSpace(in.INN),
		KPP:          strings.TrimSpace(in.KPP),
		OGRN:         strings.TrimSpace(in.OGRN),
		Director:     strings.TrimSpace(in.Director),
		Phone:        strings.TrimSpace(in.Phone),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		BankAccount:  strings.TrimSpace(in.BankAccount),
		BankBIK:      strings.TrimSpace(in.BankBIK),
		BankName:     strings.TrimSpace(in.BankName),
		BankCorr:     strings.TrimSpace(in.BankCorr),
	}
}
