package excel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseBRNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"R$ 12,50", "12.5", true},
		{"1.234,56", "1234.56", true},
		{"7", "7", true},
		{"3.5", "3.5", true},
		{"", "0", false},
		{"abc", "0", false},
	}
	for _, tt := range tests {
		got, ok := parseBRNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s => %s", tt.in, got)
	}
}

func TestParseCatalog_CSVWithHeaderAndSemicolons(t *testing.T) {
	input := "Nome;Custo;Venda;Qtd\nBatom;R$ 10,00;R$ 25,00;20\n\nBase;30;55\n;1;2;3\nRimel;x;19,90;dois\n"

	rows, err := ParseCatalog("produtos.csv", strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Batom", rows[0].Name)
	assert.True(t, rows[0].PurchasePrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, rows[0].BasePrice.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, 20, rows[0].Quantity)
	assert.Equal(t, 0, rows[1].Quantity, "missing quantity is zero")
	assert.True(t, rows[2].PurchasePrice.IsZero(), "unreadable cost is zero")
	assert.Equal(t, 0, rows[2].Quantity)
}

func TestParseCatalog_CSVWithoutHeader(t *testing.T) {
	rows, err := ParseCatalog("p.csv", strings.NewReader("Batom,10,25,3\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Quantity)
}

func TestParseCatalog_XLSXHeaderAliases(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Quantidade", "Produto", "Preço Venda", "Preço Compra"},
		{5, "Blush", "20,00", "8,5"},
	})

	rows, err := ParseCatalog("catalogo.xlsx", buf)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Blush", rows[0].Name)
	assert.Equal(t, 5, rows[0].Quantity)
	assert.True(t, rows[0].PurchasePrice.Equal(decimal.NewFromFloat(8.5)))
	assert.True(t, rows[0].BasePrice.Equal(decimal.NewFromInt(20)))
}

func TestParseCatalog_NoValidRows(t *testing.T) {
	_, err := ParseCatalog("p.csv", strings.NewReader("Nome,Custo,Venda,Qtd\n,1,2,3\n"))
	assert.ErrorContains(t, err, "Nome, Custo, Venda, Qtd")

	_, err = ParseCatalog("p.csv", strings.NewReader("  \n"))
	assert.ErrorContains(t, err, "empty")
}

func TestParseLedger_CSV(t *testing.T) {
	input := "data;descricao;valor unitario;unidades;valor total;custo;vendas;vendedor\n" +
		"01/05/2025;Batom Rosa;12,50;4;50,00;10;2;Ana\n" +
		";;;;;;;\n" +
		"02/05/2025;Base;n/a;1;;;;\n"

	rows, err := ParseLedger("planilha.csv", strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, rows, 2)
	first := rows[0]
	assert.Equal(t, "01/05/2025", first.RestockDate)
	assert.Equal(t, "Batom Rosa", first.Description)
	require.NotNil(t, first.UnitValue)
	assert.Equal(t, 12.5, *first.UnitValue)
	assert.Equal(t, 4.0, *first.Units)
	assert.Equal(t, 50.0, *first.TotalValue)
	assert.Equal(t, 2.0, *first.Sales)
	assert.Equal(t, "Ana", first.SellerName)

	assert.Nil(t, rows[1].UnitValue)
	assert.Nil(t, rows[1].TotalValue)
	assert.Empty(t, rows[1].SellerName)
}

func TestParseLedger_XLSX(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Data", "Descrição", "Valor", "Unidades", "Total", "Custo", "Vendas", "Vendedor"},
		{"2025-05-01", "Rimel", "19,90", "3", "59,70", "9", "1", "Bia"},
	})

	rows, err := ParseLedger("planilha.xlsx", buf)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rimel", rows[0].Description)
	assert.InDelta(t, 59.7, *rows[0].TotalValue, 1e-9)
	assert.Equal(t, "Bia", rows[0].SellerName)
}

func TestParseLedger_HeaderOnly(t *testing.T) {
	_, err := ParseLedger("x.csv", strings.NewReader("a,b,c\n"))
	assert.Error(t, err)
}
