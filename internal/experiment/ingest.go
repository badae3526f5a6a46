package experiment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Raw Olist file names under the ingest directory.
const (
	OlistOrdersFile    = "olist_orders_dataset.csv"
	OlistPaymentsFile  = "olist_order_payments_dataset.csv"
	OlistCustomersFile = "olist_customers_dataset.csv"
)

// EnrichedOrder is one row of the enriched orders table: an order with
// its summed payments and the purchasing customer's geography.
type EnrichedOrder struct {
	OrderID        string
	CustomerID     string
	Status         string
	PurchasedAt    string   // copied verbatim from the orders file
	Revenue        *float64 // nil when the order has no payments
	CustomerUnique string
	City           string
	State          string
}

// EnrichedColumns is the header written by WriteEnrichedOrders and read
// back by ReadOrders.
var EnrichedColumns = []string{
	"order_id", "customer_id", "order_status", ColPurchasedAt, ColOrderRevenue,
	ColCustomerID, "customer_city", ColState,
}

type customer struct {
	unique, city, state string
}

// ReadOlist joins the raw Olist orders, payments and customers tables.
// Revenue is the sum of payment_value per order_id. Orders keep their file
// order; payments or customers without a match leave the fields empty.
func ReadOlist(orders, payments, customers io.Reader) ([]EnrichedOrder, error) {
	schemaErr := &SchemaError{}

	revenue, err := readPayments(payments, schemaErr)
	if err != nil {
		return nil, err
	}
	people, err := readCustomers(customers, schemaErr)
	if err != nil {
		return nil, err
	}

	var out []EnrichedOrder
	err = readTable(orders, "orders", []string{"order_id", "customer_id", "order_status", ColPurchasedAt}, schemaErr,
		func(row int, cell func(string) string) {
			o := EnrichedOrder{
				OrderID:     cell("order_id"),
				CustomerID:  cell("customer_id"),
				Status:      cell("order_status"),
				PurchasedAt: cell(ColPurchasedAt),
			}
			if o.OrderID == "" {
				schemaErr.add(row, "orders.order_id", "is required")
			}
			if payments, ok := revenue[o.OrderID]; ok {
				total := floats.Sum(payments)
				o.Revenue = &total
			}
			if c, ok := people[o.CustomerID]; ok {
				o.CustomerUnique, o.City, o.State = c.unique, c.city, c.state
			}
			out = append(out, o)
		})
	if err != nil {
		return nil, err
	}

	if err := schemaErr.err(); err != nil {
		return nil, err
	}
	return out, nil
}

func readPayments(r io.Reader, schemaErr *SchemaError) (map[string][]float64, error) {
	revenue := make(map[string][]float64)
	err := readTable(r, "payments", []string{"order_id", "payment_value"}, schemaErr,
		func(row int, cell func(string) string) {
			v := cell("payment_value")
			if isMissing(v) {
				return
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				schemaErr.add(row, "payments.payment_value", fmt.Sprintf("not a number: %q", v))
				return
			}
			id := cell("order_id")
			revenue[id] = append(revenue[id], f)
		})
	return revenue, err
}

func readCustomers(r io.Reader, schemaErr *SchemaError) (map[string]customer, error) {
	people := make(map[string]customer)
	err := readTable(r, "customers", []string{"customer_id", ColCustomerID, "customer_city", ColState}, schemaErr,
		func(_ int, cell func(string) string) {
			id := cell("customer_id")
			if _, dup := people[id]; dup {
				return
			}
			people[id] = customer{unique: cell(ColCustomerID), city: cell("customer_city"), state: cell(ColState)}
		})
	return people, err
}

// readTable calls fn for every data row of a CSV. Missing required columns
// are added to schemaErr as "<table>.<column>" and no rows are read.
func readTable(r io.Reader, table string, required []string, schemaErr *SchemaError, fn func(row int, cell func(string) string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		schemaErr.add(0, table, "empty input")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s header: %w", table, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	missing := false
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			schemaErr.add(0, table+"."+col, "missing column")
			missing = true
		}
	}
	if missing {
		return nil
	}

	for row := 1; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s row %d: %w", table, row, err)
		}
		fn(row, func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(fields) {
				return ""
			}
			return strings.TrimSpace(fields[i])
		})
	}
}

// WriteEnrichedOrders writes orders as CSV with EnrichedColumns. A nil
// revenue is written as an empty cell.
func WriteEnrichedOrders(w io.Writer, orders []EnrichedOrder) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EnrichedColumns); err != nil {
		return err
	}
	for _, o := range orders {
		revenue := ""
		if o.Revenue != nil {
			revenue = strconv.FormatFloat(*o.Revenue, 'f', -1, 64)
		}
		if err := cw.Write([]string{
			o.OrderID, o.CustomerID, o.Status, o.PurchasedAt, revenue,
			o.CustomerUnique, o.City, o.State,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
