package documents

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"metaltrade/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Kind string

const (
	KindContract Kind = "contract"
	KindInvoice  Kind = "invoice"
	KindRFQ      Kind = "rfq"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindContract, KindInvoice, KindRFQ:
		return k, nil
	default:
		return "", fmt.Errorf("unknown document kind %q", s)
	}
}

// NeedsWinner - договор и счёт формируются только по выигравшему предложению
func (k Kind) NeedsWinner() bool {
	return k == KindContract || k == KindInvoice
}

var ErrIncompleteData = errors.New("document data is incomplete")

// Line - строка спецификации
type Line struct {
	Title      string
	IsAnalogue bool
	Quantity   float64
	Price      string
	Total      string
}

type Data struct {
	Request      *models.Request
	Offer        *models.Offer
	Supplier     *models.Supplier
	Counterparty *models.Counterparty
	Date         string
	Total        string
	Lines        []Line
}

// NewData собирает спецификацию: позиции предложения сопоставляются с позициями заявки
func NewData(req *models.Request, offer *models.Offer, supplier *models.Supplier, cp *models.Counterparty, now time.Time) Data {
	d := Data{
		Request:      req,
		Offer:        offer,
		Supplier:     supplier,
		Counterparty: cp,
		Date:         now.Format("02.01.2006"),
	}
	if offer == nil {
		return d
	}

	items := make(map[int64]models.RequestItem, len(req.Items))
	for _, it := range req.Items {
		items[it.ID] = it
	}
	for _, oi := range offer.Items {
		ri := items[oi.RequestItemID]
		line := Line{
			Title:      ri.Title(),
			IsAnalogue: oi.IsAnalogue,
			Quantity:   ri.Quantity,
			Price:      oi.Price.StringFixed(2),
		}
		if oi.IsAnalogue {
			if oi.AnalogName != "" {
				line.Title = oi.AnalogName
			}
			if oi.AnalogQuantity != nil {
				line.Quantity = *oi.AnalogQuantity
			}
		}
		total := oi.Price.Mul(decimal.NewFromFloat(line.Quantity))
		if oi.TotalPrice.Valid {
			total = oi.TotalPrice.Decimal
		}
		line.Total = total.StringFixed(2)
		d.Lines = append(d.Lines, line)
	}
	d.Total = offer.Total().StringFixed(2)
	return d
}

// Generator рендерит документы в HTML. Конвертация в PDF - внешняя задача,
// поэтому pdfPath всегда nil.
type Generator struct {
	dir  string
	tmpl *template.Template
	now  func() time.Time
}

func NewGenerator(dir string) (*Generator, error) {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	tmpl, err := template.New("documents").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &Generator{dir: dir, tmpl: tmpl, now: time.Now}, nil
}

func (g *Generator) Generate(kind Kind, data Data) (string, *string, error) {
	if data.Request == nil {
		return "", nil, ErrIncompleteData
	}
	if kind.NeedsWinner() && (data.Offer == nil || data.Supplier == nil || data.Counterparty == nil) {
		return "", nil, ErrIncompleteData
	}

	name := fmt.Sprintf("%s_%d_%s_%s.html", kind, data.Request.DisplayNumber, g.now().Format("20060102150405"), uuid.NewString()[:8])
	path := filepath.Join(g.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", nil, fmt.Errorf("create document: %w", err)
	}
	if err := g.tmpl.ExecuteTemplate(f, string(kind)+".html", data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("render %s: %w", kind, err)
	}
	if err := f.Close(); err != nil {
		return "", nil, fmt.Errorf("close document: %w", err)
	}
	return path, nil, nil
}
