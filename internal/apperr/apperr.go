// Package apperr define o erro de aplicação compartilhado pelos serviços e pelos handlers HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifica o erro e determina o status HTTP.
type Kind string

const (
	KindInvalid      Kind = "invalid"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// NonFieldErrors é a chave usada para erros que não pertencem a um campo.
const NonFieldErrors = "non_field_errors"

// Error carrega a mensagem para o usuário, os erros por campo e a causa original.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string

	cause error
}

var (
	Invalid      = &Error{Kind: KindInvalid, Message: "Dados inválidos."}
	NotFound     = &Error{Kind: KindNotFound, Message: "Registro não encontrado."}
	Forbidden    = &Error{Kind: KindForbidden, Message: "Você não tem permissão para acessar esta página."}
	Unauthorized = &Error{Kind: KindUnauthorized, Message: "Autenticação necessária."}
	Conflict     = &Error{Kind: KindConflict, Message: "Registro duplicado."}
	Internal     = &Error{Kind: KindInternal, Message: "Erro interno do servidor."}
)

func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
		}
		str += " {" + strings.Join(parts, "; ") + "}"
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is compara apenas o Kind, para que errors.Is(err, apperr.NotFound) funcione com cópias.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) clone() *Error {
	c := *e
	if e.Fields != nil {
		c.Fields = make(map[string][]string, len(e.Fields))
		for k, v := range e.Fields {
			c.Fields[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Explain devolve uma cópia com a mensagem informada.
func (e *Error) Explain(format string, args ...any) *Error {
	c := e.clone()
	if len(args) > 0 {
		c.Message = fmt.Sprintf(format, args...)
	} else {
		c.Message = format
	}
	return c
}

// Wrap devolve uma cópia com a causa registrada.
func (e *Error) Wrap(cause error) *Error {
	c := e.clone()
	c.cause = cause
	return c
}

// WithField devolve uma cópia acrescida de um erro de campo.
func (e *Error) WithField(field, message string) *Error {
	c := e.clone()
	if c.Fields == nil {
		c.Fields = make(map[string][]string)
	}
	c.Fields[field] = append(c.Fields[field], message)
	return c
}

// StatusCode traduz o Kind para o status HTTP.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From converte qualquer erro em *Error, tratando erros desconhecidos como internos.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal.Wrap(err)
}

// FieldSet acumula erros de validação antes de virarem um *Error.
type FieldSet map[string][]string

func (f FieldSet) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldSet) Has(field string) bool {
	return len(f[field]) > 0
}

// Err devolve nil quando não há erros acumulados.
func (f FieldSet) Err() error {
	if len(f) == 0 {
		return nil
	}
	e := Invalid.Explain("Por favor, corrija os erros abaixo.")
	e.Fields = map[string][]string(f)
	return e
}
