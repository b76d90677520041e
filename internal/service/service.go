// Package service implementa as regras de negócio de clientes, pedidos,
// relatórios e contas, usadas tanto pelas páginas web quanto pela API.
package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/ericoliveiras/gestao-clientes/internal/apperr"
)

// Tamanhos de página padrão.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page identifica a página pedida, começando em 1.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// PageResult é uma página de resultados com o total da consulta.
type PageResult[T any] struct {
	Items  []T
	Total  int64
	Number int
	Size   int
}

func (r PageResult[T]) NumPages() int {
	if r.Total == 0 {
		return 1
	}
	return int((r.Total + int64(r.Size) - 1) / int64(r.Size))
}

func (r PageResult[T]) HasNext() bool     { return r.Number < r.NumPages() }
func (r PageResult[T]) HasPrevious() bool { return r.Number > 1 }
func (r PageResult[T]) NextNumber() int   { return r.Number + 1 }
func (r PageResult[T]) PrevNumber() int   { return r.Number - 1 }

// paginate conta e busca a página pedida da consulta.
func paginate[T any](q *gorm.DB, page Page) (PageResult[T], error) {
	page = page.normalize()
	res := PageResult[T]{Number: page.Number, Size: page.Size}
	if err := q.Session(&gorm.Session{}).Count(&res.Total).Error; err != nil {
		return res, apperr.Internal.Wrap(err)
	}
	// Página além da última vira a última.
	if last := res.NumPages(); res.Number > last {
		res.Number = last
	}
	if err := q.Offset((res.Number - 1) * res.Size).Limit(res.Size).Find(&res.Items).Error; err != nil {
		return res, apperr.Internal.Wrap(err)
	}
	return res, nil
}

// ordering traduz "campo" ou "-campo" em cláusula ORDER BY, só para campos permitidos.
func ordering(value string, allowed map[string]string, fallback string) string {
	desc := strings.HasPrefix(value, "-")
	col, ok := allowed[strings.TrimPrefix(value, "-")]
	if !ok {
		return fallback
	}
	if desc {
		return col + " DESC"
	}
	return col + " ASC"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct aplica as tags validate e traduz cada falha pela chave "campo.tag".
func checkStruct(in any, messages map[string]string, fields apperr.FieldSet) {
	err := validate.Struct(in)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields.Add(apperr.NonFieldErrors, err.Error())
		return
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Valor inválido."
		}
		if !fields.Has(fe.Field()) {
			fields.Add(fe.Field(), msg)
		}
	}
}

func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound.Explain("%s", msg)
	}
	return apperr.Internal.Wrap(err)
}

// Clock devolve o horário atual; os testes trocam por um relógio fixo.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// dayRange devolve [início do dia, início do dia seguinte).
func dayRange(d time.Time) (time.Time, time.Time) {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	return start, start.AddDate(0, 0, 1)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// ParseDate interpreta datas no formato do input HTML (YYYY-MM-DD).
func ParseDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
