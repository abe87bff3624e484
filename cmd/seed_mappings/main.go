// seed_mappings genera un script SQL para poblar los mapeos de impuestos y
// monedas a partir del CSV exportado del host (Contabilidad > Impuestos).
//
// Uso: go run ./cmd/seed_mappings [ruta/impuestos.csv] [ruta/monedas.csv]
// Por defecto busca impuestos.csv y monedas.csv en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/002_seed_mappings.sql
//
// El CSV de impuestos lleva columnas: warehouse_id, local_tax_id, local_tax_name.
// El de monedas: warehouse_id, local_currency, zimra_currency.
// Los exports del host suelen venir en ISO-8859-1; se decodifican a UTF-8.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/Fiscal-Harmony/odoov19/pkg/zimra"
)

type taxRow struct {
	warehouseID  string
	localTaxID   string
	localTaxName string
}

type currencyRow struct {
	warehouseID   string
	localCurrency string
	zimraCurrency string
}

func main() {
	taxPath := "impuestos.csv"
	currencyPath := "monedas.csv"
	if len(os.Args) > 1 {
		taxPath = os.Args[1]
	}
	if len(os.Args) > 2 {
		currencyPath = os.Args[2]
	}

	taxes, err := readTaxCSV(taxPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV de impuestos: %v\n", err)
		os.Exit(1)
	}
	currencies, err := readCurrencyCSV(currencyPath)
	if err != nil && !os.IsNotExist(underlying(err)) {
		fmt.Fprintf(os.Stderr, "Leer CSV de monedas: %v\n", err)
		os.Exit(1)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_mappings.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Mapeos de impuestos y monedas por bodega\n")
	out.WriteString("-- Generado desde los CSV exportados del host\n\n")

	out.WriteString("-- 1. Mapeos de impuestos (el tipo canónico y el TaxID del dispositivo\n")
	out.WriteString("--    salen del catálogo ZIMRA por nombre del impuesto local)\n")
	for _, t := range taxes {
		taxType := zimra.NormalizeTaxType(t.localTaxName)
		info := zimra.DefaultTaxCatalog[taxType]
		rate := info.Rate
		if r, found := zimra.ExtractRateFromName(t.localTaxName); found {
			rate = r
		}
		fmt.Fprintf(out, "INSERT INTO tax_mappings (id, config_id, local_tax_id, local_tax_name, tax_code, tax_name, tax_rate, tax_type, active)\n")
		fmt.Fprintf(out, "SELECT gen_random_uuid(), id, '%s', '%s', '%d', '%s', %g, '%s', true\n",
			escapeSQL(t.localTaxID), escapeSQL(t.localTaxName), info.TaxID, escapeSQL(info.Name), rate, escapeSQL(taxType))
		fmt.Fprintf(out, "FROM fiscal_configs WHERE warehouse_id = '%s' AND active\n", escapeSQL(t.warehouseID))
		out.WriteString("ON CONFLICT (config_id, local_tax_id) DO UPDATE SET local_tax_name = EXCLUDED.local_tax_name, tax_code = EXCLUDED.tax_code, tax_type = EXCLUDED.tax_type;\n\n")
	}

	out.WriteString("-- 2. Mapeos de monedas\n")
	for _, c := range currencies {
		fmt.Fprintf(out, "INSERT INTO currency_mappings (id, config_id, local_currency_code, zimra_currency_code, active)\n")
		fmt.Fprintf(out, "SELECT gen_random_uuid(), id, '%s', '%s', true\n",
			escapeSQL(c.localCurrency), escapeSQL(c.zimraCurrency))
		fmt.Fprintf(out, "FROM fiscal_configs WHERE warehouse_id = '%s' AND active\n", escapeSQL(c.warehouseID))
		out.WriteString("ON CONFLICT (config_id, local_currency_code) DO UPDATE SET zimra_currency_code = EXCLUDED.zimra_currency_code;\n\n")
	}

	fmt.Printf("Generado %s: %d impuestos, %d monedas\n", outPath, len(taxes), len(currencies))
}

func readTaxCSV(path string) ([]taxRow, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var rows []taxRow
	for _, rec := range records {
		if len(rec) < 3 || rec[0] == "warehouse_id" {
			continue
		}
		rows = append(rows, taxRow{
			warehouseID:  strings.TrimSpace(rec[0]),
			localTaxID:   strings.TrimSpace(rec[1]),
			localTaxName: strings.TrimSpace(rec[2]),
		})
	}
	return rows, nil
}

func readCurrencyCSV(path string) ([]currencyRow, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var rows []currencyRow
	for _, rec := range records {
		if len(rec) < 3 || rec[0] == "warehouse_id" {
			continue
		}
		rows = append(rows, currencyRow{
			warehouseID:   strings.TrimSpace(rec[0]),
			localCurrency: strings.ToUpper(strings.TrimSpace(rec[1])),
			zimraCurrency: strings.ToUpper(strings.TrimSpace(rec[2])),
		})
	}
	return rows, nil
}

// readCSV decodifica el archivo como ISO-8859-1 salvo que traiga BOM UTF-8.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	head := make([]byte, 3)
	n, _ := io.ReadFull(f, head)
	if n == 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		// BOM UTF-8: ya viene decodificado
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		reader = transform.NewReader(f, charmap.ISO8859_1.NewDecoder())
	}

	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func underlying(err error) error {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err
	}
	return err
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
