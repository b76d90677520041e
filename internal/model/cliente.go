// /internal/model/cliente.go
package model

import (
	"fmt"
	"time"
)

// Faixas etárias usadas nas estatísticas de clientes.
const (
	FaixaEtaria18a25   = "18-25"
	FaixaEtaria26a35   = "26-35"
	FaixaEtaria36a50   = "36-50"
	FaixaEtaria51a65   = "51-65"
	FaixaEtariaAcima65 = "65+"
)

// Limites de idade aceitos no cadastro.
const (
	IdadeMinima = 18
	IdadeMaxima = 120
)

// FaixasEtarias lista as faixas na ordem de exibição.
var FaixasEtarias = []string{
	FaixaEtaria18a25, FaixaEtaria26a35, FaixaEtaria36a50, FaixaEtaria51a65, FaixaEtariaAcima65,
}

// Client representa um cliente da empresa.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;size:100;index" json:"name"`
	Email     string    `gorm:"not null;size:254;uniqueIndex" json:"email"`
	Age       int       `gorm:"not null" json:"age"`
	Pedidos   []Pedido  `gorm:"foreignKey:ClienteID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Client) String() string {
	return fmt.Sprintf("Client: %s", c.Name)
}

// DisplayName é o nome exibido em listas e selects.
func (c Client) DisplayName() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Email)
}

// AgeGroup devolve a faixa etária do cliente.
func (c Client) AgeGroup() string {
	return AgeGroupOf(c.Age)
}

func AgeGroupOf(age int) string {
	switch {
	case age <= 25:
		return FaixaEtaria18a25
	case age <= 35:
		return FaixaEtaria26a35
	case age <= 50:
		return FaixaEtaria36a50
	case age <= 65:
		return FaixaEtaria51a65
	default:
		return FaixaEtariaAcima65
	}
}
