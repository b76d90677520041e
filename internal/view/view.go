// Package view carrega os templates HTML e as funções usadas neles.
package view

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// Money formata valores como 1.234,56.
func Money(v any) string {
	switch m := v.(type) {
	case decimal.Decimal:
		return brl.Sprintf("%.2f", m.Round(2).InexactFloat64())
	case interface{ StringFixed(int32) string }:
		return Money(decimal.RequireFromString(m.StringFixed(2)))
	case string:
		d, err := decimal.NewFromString(m)
		if err != nil {
			return m
		}
		return Money(d)
	case nil:
		return Money(decimal.Zero)
	}
	return fmt.Sprint(v)
}

func timeIn(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.In(loc), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.In(loc), !t.IsZero()
	}
	return time.Time{}, false
}

// Funcs são as funções dos templates, com datas no fuso informado.
func Funcs(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.Local
	}
	return template.FuncMap{
		"money": Money,
		"date": func(v any) string {
			if t, ok := timeIn(v, loc); ok {
				return t.Format(model.LayoutData)
			}
			return "-"
		},
		"datetime": func(v any) string {
			if t, ok := timeIn(v, loc); ok {
				return t.Format(model.LayoutDataHora)
			}
			return "-"
		},
		// isoDate preenche inputs type=date.
		"isoDate": func(v any) string {
			if t, ok := timeIn(v, loc); ok {
				return t.Format(time.DateOnly)
			}
			return ""
		},
		"pageURL": func(query string, n int) template.URL {
			u := "?page=" + strconv.Itoa(n)
			if query != "" {
				u += "&" + query
			}
			return template.URL(u)
		},
		// withQuery repassa os filtros atuais para outro endereço.
		"withQuery": func(path, query string) template.URL {
			if query == "" {
				return template.URL(path)
			}
			return template.URL(path + "?" + query)
		},
		// pager junta página e filtros para o template "pagination".
		"pager": func(page any, query string) map[string]any {
			return map[string]any{"Page": page, "Query": query}
		},
		"field":       field,
		"fieldErrors": fieldErrors,
		"join":        strings.Join,
		"hasGroup": func(u model.Usuario, id uint) bool {
			for _, g := range u.Grupos {
				if g.ID == id {
					return true
				}
			}
			return false
		},
		"percent": func(part, total int64) string {
			if total == 0 {
				return "0"
			}
			return strconv.FormatFloat(float64(part)*100/float64(total), 'f', 1, 64)
		},
		"statusLabel":     func(s string) string { return model.StatusPedido(s).Label() },
		"prioridadeLabel": func(p string) string { return model.PrioridadePedido(p).Label() },
	}
}

// field devolve o valor do formulário, ou vazio.
func field(form any, key string) string {
	switch f := form.(type) {
	case gin.H:
		if v, ok := f[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	case map[string]any:
		if v, ok := f[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return ""
}

func fieldErrors(errs any, key string) []string {
	if m, ok := errs.(map[string][]string); ok {
		return m[key]
	}
	return nil
}

// Load registra as funções e carrega os templates do padrão informado.
func Load(router *gin.Engine, glob string, loc *time.Location) {
	router.SetFuncMap(Funcs(loc))
	router.LoadHTMLGlob(glob)
}
