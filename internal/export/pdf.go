package export

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/ericoliveiras/gestao-clientes/internal/model"
)

// MaxPDFPedidos é quantos pedidos entram na tabela do relatório.
const MaxPDFPedidos = 50

const (
	inch          = 25.4
	maxNomeLength = 20
)

// Filtros são os parâmetros aceitos pelo relatório PDF, como vieram da URL.
type Filtros struct {
	DataInicio string
	DataFim    string
	Status     string
	Prioridade string
}

// Labels descreve os filtros preenchidos, na ordem do relatório.
func (f Filtros) Labels() []string {
	var out []string
	if f.DataInicio != "" {
		out = append(out, "Data Início: "+f.DataInicio)
	}
	if f.DataFim != "" {
		out = append(out, "Data Fim: "+f.DataFim)
	}
	if f.Status != "" {
		out = append(out, "Status: "+model.StatusPedido(f.Status).Label())
	}
	if f.Prioridade != "" {
		out = append(out, "Prioridade: "+model.PrioridadePedido(f.Prioridade).Label())
	}
	return out
}

// Report reúne o que vai para o PDF.
type Report struct {
	Filtros    Filtros
	Total      int64
	ValorTotal string
	ValorMedio string
	GeradoEm   time.Time
	// Pedidos já ordenados; só os primeiros MaxPDFPedidos são impressos.
	Pedidos  []model.Pedido
	Location *time.Location
}

// PDFFilename é o nome do anexo gerado no dia informado.
func PDFFilename(day time.Time) string {
	return fmt.Sprintf("relatorio_pedidos_%s.pdf", day.Format(time.DateOnly))
}

func truncateNome(name string) string {
	if utf8.RuneCountInString(name) <= maxNomeLength {
		return name
	}
	return string([]rune(name)[:maxNomeLength]) + "..."
}

// WritePDF monta o relatório em A4 e o escreve em w.
func WritePDF(w io.Writer, r Report) error {
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Relatório de Pedidos", true)
	pdf.SetCreator("gestao-clientes", true)
	pdf.SetCreationDate(r.GeradoEm)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr("Relatório de Pedidos"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	if labels := r.Filtros.Labels(); len(labels) > 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr("Filtros aplicados: "+strings.Join(labels, " | ")), "", "L", false)
		pdf.Ln(6)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr("Resumo Estatístico"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	resumo := [][2]string{
		{"Total de Pedidos:", fmt.Sprint(r.Total)},
		{"Valor Total:", "R$ " + r.ValorTotal},
		{"Valor Médio:", "R$ " + r.ValorMedio},
		{"Data do Relatório:", r.GeradoEm.In(loc).Format(model.LayoutData)},
	}
	pdf.SetFont("Helvetica", "B", 11)
	for _, linha := range resumo {
		pdf.SetFillColor(173, 216, 230)
		pdf.CellFormat(2*inch, 8, tr(linha[0]), "1", 0, "L", true, 0, "")
		pdf.CellFormat(3*inch, 8, tr(linha[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(10)

	pedidos := r.Pedidos
	if len(pedidos) > MaxPDFPedidos {
		pedidos = pedidos[:MaxPDFPedidos]
	}
	if len(pedidos) > 0 {
		writePedidos(pdf, tr, pedidos, loc)
		if r.Total > MaxPDFPedidos {
			pdf.Ln(4)
			pdf.SetFont("Helvetica", "", 10)
			nota := fmt.Sprintf("Nota: Exibindo apenas os primeiros %d pedidos de %d encontrados.", MaxPDFPedidos, r.Total)
			pdf.MultiCell(0, 5, tr(nota), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func writePedidos(pdf *fpdf.Fpdf, tr func(string) string, pedidos []model.Pedido, loc *time.Location) {
	widths := []float64{1.5 * inch, 1.5 * inch, inch, inch, inch, inch}
	var tableWidth float64
	for _, w := range widths {
		tableWidth += w
	}
	pageWidth, _ := pdf.GetPageSize()
	left := (pageWidth - tableWidth) / 2

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr("Lista de Pedidos"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	header := []string{"Número", "Cliente", "Data", "Status", "Prioridade", "Valor"}
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	pdf.SetX(left)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	for _, p := range pedidos {
		row := []string{
			p.NumeroPedido,
			truncateNome(p.Cliente.Name),
			p.DataPedido.In(loc).Format(model.LayoutData),
			p.Status.Label(),
			p.Prioridade.Label(),
			"R$ " + p.ValorTotal.StringFixed(2),
		}
		pdf.SetX(left)
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}
