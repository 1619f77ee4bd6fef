package db

import (
	"context"

	"metaltrade/internal/rfq"
	"metaltrade/models"

	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
)

// Поставщик (Supplier)

func (s *Storage) CreateSupplier(ctx context.Context, sup *models.Supplier) error {
	query := `
        INSERT INTO suppliers (buyer_id, short_name, inn, legal_address, contact_person, phone, email, category)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		sup.BuyerID, sup.ShortName, sup.INN, sup.LegalAddress, sup.ContactPerson, sup.Phone, sup.Email, sup.Category,
	).Scan(&sup.ID, &sup.CreatedAt)
	return errors.Wrap(err, "insert supplier")
}

func (s *Storage) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	sup := &models.Supplier{}
	if err := s.db.GetContext(ctx, sup, `SELECT * FROM suppliers WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, rfq.ErrSupplierNotFound
		}
		return nil, errors.Wrap(err, "select supplier")
	}
	return sup, nil
}

func (s *Storage) ListSuppliers(ctx context.Context, buyerID int64, category string) ([]models.Supplier, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*")
	sb.From("suppliers")
	where := []string{sb.Equal("buyer_id", buyerID)}
	if category != "" {
		where = append(where, sb.Equal("category", category))
	}
	sb.Where(where...)
	sb.OrderBy("id")

	query, args := sb.Build()
	list := []models.Supplier{}
	if err := s.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, errors.Wrap(err, "select suppliers")
	}
	return list, nil
}

func (s *Storage) UpdateSupplier(ctx context.Context, sup *models.Supplier) error {
	query := `
        UPDATE suppliers
        SET short_name=$1, inn=$2, legal_address=$3, contact_person=$4, phone=$5, email=$6, category=$7
        WHERE id=$8 AND buyer_id=$9`
	res, err := s.db.ExecContext(ctx, query,
		sup.ShortName, sup.INN, sup.LegalAddress, sup.ContactPerson, sup.Phone, sup.Email, sup.Category,
		sup.ID, sup.BuyerID)
	if err != nil {
		return errors.Wrap(err, "update supplier")
	}
	return expectOne(res, rfq.ErrSupplierNotFound)
}

func (s *Storage) DeleteSupplier(ctx context.Context, buyerID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id=$1 AND buyer_id=$2`, id, buyerID)
	if err != nil {
		if code, _ := pqCode(err); code == codeForeignKeyViolation {
			return rfq.ErrSupplierInUse
		}
		return errors.Wrap(err, "delete supplier")
	}
	return expectOne(res, rfq.ErrSupplierNotFound)
}

// Контрагент (Counterparty)

func (s *Storage) CreateCounterparty(ctx context.Context, c *models.Counterparty) error {
	query := `
        INSERT INTO counterparties (buyer_id, short_name, legal_address, inn, kpp, ogrn, director,
            phone, email, bank_account, bank_bik, bank_name, bank_corr)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		c.BuyerID, c.ShortName, c.LegalAddress, c.INN, c.KPP, c.OGRN, c.Director,
		c.Phone, c.Email, c.BankAccount, c.BankBIK, c.BankName, c.BankCorr,
	).Scan(&c.ID, &c.CreatedAt)
	return errors.Wrap(err, "insert counterparty")
}

func (s *Storage) GetCounterparty(ctx context.Context, id int64) (*models.Counterparty, error) {
	c := &models.Counterparty{}
	if err := s.db.GetContext(ctx, c, `SELECT * FROM counterparties WHERE id = $1`, id); err != nil {
		if isNoRows(err) {
			return nil, rfq.ErrCounterpartyNotFound
		}
		return nil, errors.Wrap(err, "select counterparty")
	}
	return c, nil
}

func (s *Storage) ListCounterparties(ctx context.Context, buyerID int64) ([]models.Counterparty, error) {
	list := []models.Counterparty{}
	query := `SELECT * FROM counterparties WHERE buyer_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &list, query, buyerID); err != nil {
		return nil, errors.Wrap(err, "select counterparties")
	}
	return list, nil
}

func (s *Storage) UpdateCounterparty(ctx context.Context, c *models.Counterparty) error {
	query := `
        UPDATE counterparties
        SET short_name=$1, legal_address=$2, inn=$3, kpp=$4, ogrn=$5, director=$6, phone=$7, email=$8,
            bank_account=$9, bank_bik=$10, bank_name=$11, bank_corr=$12
        WHERE id=$13 AND buyer_id=$14`
	res, err := s.db.ExecContext(ctx, query,
		c.ShortName, c.LegalAddress, c.INN, c.KPP, c.OGRN, c.Director, c.Phone, c.Email,
		c.BankAccount, c.BankBIK, c.BankName, c.BankCorr,
		c.ID, c.BuyerID)
	if err != nil {
		return errors.Wrap(err, "update counterparty")
	}
	return expectOne(res, rfq.ErrCounterpartyNotFound)
}

func (s *Storage) DeleteCounterparty(ctx context.Context, buyerID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM counterparties WHERE id=$1 AND buyer_id=$2`, id, buyerID)
	if err != nil {
		if code, _ := pqCode(err); code == codeForeignKeyViolation {
			return rfq.ErrCounterpartyInUse
		}
		return errors.Wrap(err, "delete counterparty")
	}
	return expectOne(res, rfq.ErrCounterpartyNotFound)
}
