package rfq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"metaltrade/internal/auth"
	"metaltrade/internal/events"
	"metaltrade/internal/notify"
	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type IssuedToken struct {
	GroupKey   string    `json:"group_key"`
	SupplierID int64     `json:"supplier_id"`
	Token      uuid.UUID `json:"-"`
	Created    bool      `json:"created"`
	Recipients []string  `json:"recipients"`
}

type SkippedSupplier struct {
	GroupKey   string `json:"group_key"`
	SupplierID int64  `json:"supplier_id"`
	Reason     string `json:"reason"`
}

type SendResult struct {
	Message string            `json:"message"`
	Sent    []IssuedToken     `json:"sent"`
	Skipped []SkippedSupplier `json:"skipped"`
	Emails  int               `json:"emails"`
}

type preparedGroup struct {
	group     SendGroup
	items     []models.RequestItem
	suppliers []*models.Supplier
	manual    []string
}

// SendToSuppliers выдаёт токены выбранным поставщикам и ставит письма в очередь.
// Статус заявки не меняется. Вход проверяется целиком до выдачи первого токена.
func (e *Engine) SendToSuppliers(ctx context.Context, p auth.Principal, requestID uuid.UUID, in SendInput) (*SendResult, error) {
	if !p.IsBuyer() {
		return nil, ErrBuyersOnly
	}
	if err := e.validateStruct(in); err != nil {
		return nil, err
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageRequest(p, req) {
		return nil, ErrForbidden
	}
	if req.Status == models.StatusAwarded {
		return nil, ErrRequestClosed
	}

	prepared := make([]preparedGroup, 0, len(in.Groups))
	for i, g := range in.Groups {
		pg, err := e.prepareGroup(ctx, p, req, g)
		if err != nil {
			var appErr *Error
			if errors.As(err, &appErr) && appErr.Kind == KindValidation {
				return nil, ValidationError(fmt.Sprintf("groups[%d]: %s", i, appErr.Message))
			}
			return nil, err
		}
		prepared = append(prepared, pg)
	}

	res := &SendResult{Sent: []IssuedToken{}, Skipped: []SkippedSupplier{}}
	var notified []int64
	for _, pg := range prepared {
		for _, s := range pg.suppliers {
			recipients := pg.manual
			if len(recipients) == 0 && s.Email != "" {
				recipients = []string{s.Email}
			}
			if len(recipients) == 0 {
				res.Skipped = append(res.Skipped, SkippedSupplier{GroupKey: pg.group.GroupKey, SupplierID: s.ID, Reason: "no recipient email"})
				continue
			}

			tok, created, err := e.IssueToken(ctx, req.ID, s.ID)
			if err != nil {
				return nil, err
			}
			if tok.IsUsed {
				res.Skipped = append(res.Skipped, SkippedSupplier{GroupKey: pg.group.GroupKey, SupplierID: s.ID, Reason: "offer already submitted"})
				continue
			}

			data := notify.RFQData{
				Request: req,
				Items:   pg.items,
				Header:  pg.group.EmailHeader,
				Footer:  pg.group.EmailFooter,
				Link:    e.supplierLink(req.ID, tok.Token),
			}
			for _, to := range recipients {
				msg, err := e.renderer.RFQ(to, data)
				if err != nil {
					e.logger.WithError(err).WithField("request_id", req.ID).Error("Failed to render RFQ email")
					continue
				}
				e.mailer.Enqueue(ctx, msg)
				res.Emails++
			}
			res.Sent = append(res.Sent, IssuedToken{
				GroupKey:   pg.group.GroupKey,
				SupplierID: s.ID,
				Token:      tok.Token,
				Created:    created,
				Recipients: recipients,
			})
			notified = append(notified, s.ID)
		}
	}

	res.Message = fmt.Sprintf("request sent to %d supplier(s), %d email(s) queued", len(res.Sent), res.Emails)
	e.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"suppliers":  len(res.Sent),
		"skipped":    len(res.Skipped),
		"emails":     res.Emails,
	}).Info("Request sent to suppliers")
	if len(notified) > 0 {
		e.publish(ctx, events.Event{Type: events.RequestSent, RequestID: req.ID.String(), BuyerID: req.BuyerID, Suppliers: notified})
	}
	return res, nil
}

func (e *Engine) prepareGroup(ctx context.Context, p auth.Principal, req *models.Request, g SendGroup) (preparedGroup, error) {
	pg := preparedGroup{group: g}

	if len(g.ItemIDs) == 0 {
		pg.items = req.Items
	} else {
		byID := make(map[int64]models.RequestItem, len(req.Items))
		for _, it := range req.Items {
			byID[it.ID] = it
		}
		seen := make(map[int64]bool, len(g.ItemIDs))
		for _, id := range g.ItemIDs {
			it, ok := byID[id]
			if !ok {
				return pg, ValidationError(fmt.Sprintf("item %d does not belong to this request", id))
			}
			if !seen[id] {
				seen[id] = true
				pg.items = append(pg.items, it)
			}
		}
	}

	seen := make(map[int64]bool, len(g.SupplierIDs))
	for _, id := range g.SupplierIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, err := e.store.GetSupplier(ctx, id)
		if err != nil {
			return pg, err
		}
		if s.BuyerID != p.UserID {
			return pg, ErrSupplierNotFound
		}
		pg.suppliers = append(pg.suppliers, s)
	}

	pg.manual = normalizeEmails(g.ManualEmails)
	return pg, nil
}

func normalizeEmails(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, raw := range in {
		email := strings.ToLower(strings.TrimSpace(raw))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out
}
