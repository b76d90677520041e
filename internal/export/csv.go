// Package export gera os arquivos CSV e PDF da listagem de pedidos.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

// bom faz o Excel abrir o arquivo como UTF-8.
const bom = "\ufeff"

const semData = "N/A"

var csvHeader = []string{
	"ID",
	"Número do Pedido",
	"Cliente",
	"Email do Cliente",
	"Data do Pedido",
	"Data de Entrega Prevista",
	"Status",
	"Prioridade",
	"Valor Total",
	"Descrição",
	"Observações",
}

// CSVFilename é o nome do anexo gerado no dia informado.
func CSVFilename(day time.Time) string {
	return fmt.Sprintf("pedidos_%s.csv", day.Format(time.DateOnly))
}

// WriteCSV escreve os pedidos separados por ponto e vírgula.
func WriteCSV(w io.Writer, pedidos []model.Pedido, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range pedidos {
		prevista := semData
		if p.DataEntregaPrevista != nil {
			prevista = p.DataEntregaPrevista.Format(model.LayoutData)
		}
		row := []string{
			strconv.FormatUint(uint64(p.ID), 10),
			p.NumeroPedido,
			p.Cliente.Name,
			p.Cliente.Email,
			p.DataPedido.In(loc).Format(model.LayoutDataHora),
			prevista,
			p.Status.Label(),
			p.Prioridade.Label(),
			strings.Replace(p.ValorTotal.StringFixed(2), ".", ",", 1),
			p.Descricao,
			p.Observacoes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
