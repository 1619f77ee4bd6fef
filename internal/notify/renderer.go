package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"metaltrade/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message - готовое письмо для отправки
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Renderer собирает HTML писем из встроенных шаблонов
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}
	tmpl, err := template.New("mail").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type RFQData struct {
	Request *models.Request
	Items   []models.RequestItem
	Header  string
	Footer  string
	Link    string
}

type WinnerData struct {
	Request  *models.Request
	Supplier *models.Supplier
	Total    string
	Link     string
}

type LoserData struct {
	Request  *models.Request
	Supplier *models.Supplier
}

func (r *Renderer) RFQ(to string, data RFQData) (Message, error) {
	subject := fmt.Sprintf("Запрос коммерческого предложения № %d", data.Request.DisplayNumber)
	return r.render("rfq.html", to, subject, data)
}

func (r *Renderer) Winner(to string, data WinnerData) (Message, error) {
	subject := fmt.Sprintf("Ваше предложение по заявке № %d выбрано", data.Request.DisplayNumber)
	return r.render("winner.html", to, subject, data)
}

func (r *Renderer) Loser(to string, data LoserData) (Message, error) {
	subject := fmt.Sprintf("Итоги заявки № %d", data.Request.DisplayNumber)
	return r.render("loser.html", to, subject, data)
}

func (r *Renderer) render(name, to, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: buf.String()}, nil
}
