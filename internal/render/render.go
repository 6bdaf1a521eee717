package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/zombor/cfd-invoice/internal/bill"
	"github.com/zombor/cfd-invoice/internal/workflow"
)

const (
	rule     = "================================================================"
	thinRule = "----------------------------------------------------------------"
)

// Placeholders printed for fields the extraction left empty
const (
	DefaultDocumentType = "INVOICE"
	NoReference         = "NOT SPECIFIED"
	NoDate              = "N/A"
	UnknownEntity       = "Unknown Entity"
	NoItems             = "No line items were detected."
	NoNotes             = "No additional remarks were found in the scanned document."
	UnknownMerchant     = "Unknown Merchant"
	NoHistoryDate       = "No Date"
	DefaultHistoryType  = "Invoice"
)

// Footer is the signature block at the bottom of a printed bill
type Footer struct {
	SystemID  string
	Timestamp time.Time
}

// NewFooter returns a footer with a fresh system id
func NewFooter(now time.Time) Footer {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return Footer{
		SystemID:  strings.ToUpper(id[:8]),
		Timestamp: now,
	}
}

// Upload writes the prompt shown while idle
func Upload(w io.Writer) {
	fmt.Fprintln(w, "Turn Paper Bills into Digital Data")
	fmt.Fprintln(w, "Upload an image or PDF and it will be extracted into a clean CFD Invoice record.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  scan <file>    scan an image (JPG, PNG, HEIC, WEBP) or PDF")
	fmt.Fprintln(w, "  history        show recent scans")
	fmt.Fprintln(w, "  help           list all commands")
}

// Scanning writes the indicator shown while an extraction is in flight
func Scanning(w io.Writer, snap workflow.Snapshot) {
	fmt.Fprintf(w, "Analyzing %s...\n", describePreview(snap))
	fmt.Fprintln(w, "Extracting billing details. This can take a moment.")
}

func describePreview(snap workflow.Snapshot) string {
	name := snap.DocumentName
	if name == "" {
		name = "document"
	}
	if snap.MimeType == "application/pdf" {
		return fmt.Sprintf("%s (PDF Document)", name)
	}
	if len(snap.Preview) == 0 {
		return name
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(snap.Preview))
	if err != nil {
		return fmt.Sprintf("%s (%s)", name, snap.MimeType)
	}
	return fmt.Sprintf("%s (%s, %dx%d)", name, snap.MimeType, cfg.Width, cfg.Height)
}

// Failure writes the error panel
func Failure(w io.Writer, message string) {
	fmt.Fprintln(w, "Scan Failed")
	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, message)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Type 'reset' to try again.")
}

// Bill writes the printable preview of a record
func Bill(w io.Writer, r *bill.Record, footer Footer) {
	docType := orDefault(r.DocumentType, DefaultDocumentType)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-32s%32s\n", "CFD INVOICE", strings.ToUpper(docType))
	fmt.Fprintf(w, "%-32s%32s\n", "Intelligent Extraction", "Digital Copy")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-32s%32s\n", "Reference Number", "Issued Date")
	fmt.Fprintf(w, "%-32s%32s\n", orDefault(r.DocumentNumber, NoReference), orDefault(r.Date, NoDate))
	fmt.Fprintln(w)

	party(w, "SENDER / CONSIGNOR", r.Sender)
	party(w, "RECEIVER / CONSIGNEE", r.Receiver)

	items(w, r.Items)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "NOTES & OBSERVATIONS")
	fmt.Fprintln(w, orDefault(r.Notes, NoNotes))
	fmt.Fprintln(w)

	fmt.Fprintln(w, thinRule)
	fmt.Fprintf(w, "%-32s%32s\n", "Subtotal", bill.Money(r.Currency, r.Subtotal))
	fmt.Fprintf(w, "%-32s%32s\n", "Tax / Fees", bill.Money(r.Currency, r.TaxAmount))
	fmt.Fprintf(w, "%-32s%32s\n", "TOTAL AMOUNT", r.DisplayTotal())
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Processed Digitally by CFD Invoice AI")
	fmt.Fprintf(w, "System ID: %s | Timestamp: %s\n", footer.SystemID, footer.Timestamp.Format("2006-01-02 15:04:05"))
}

func party(w io.Writer, title string, p bill.Party) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, orDefault(p.Name, UnknownEntity))
	if p.Address != "" {
		fmt.Fprintln(w, p.Address)
	}
	if p.TaxID != "" {
		fmt.Fprintf(w, "TAX ID: %s\n", p.TaxID)
	}
	fmt.Fprintln(w)
}

func items(w io.Writer, rows []bill.LineItem) {
	if len(rows) == 0 {
		fmt.Fprintln(w, NoItems)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Description", "Qty", "Rate", "Amount"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT,
	})
	for _, item := range rows {
		table.Append([]string{item.Description, item.Quantity, item.Rate, item.Amount})
	}
	table.Render()
}

// History writes the list of past scans, most recent first
func History(w io.Writer, entries []bill.Entry) {
	fmt.Fprintf(w, "Recent Scans [%d]\n", len(entries))

	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet")
		fmt.Fprintln(w, "Scanned invoices will appear here for quick access.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "ID", "Merchant", "Date", "Type", "Total", "Scanned"})
	table.SetAutoWrapText(false)
	for i, e := range entries {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.ID,
			orDefault(e.Data.Sender.Name, UnknownMerchant),
			orDefault(e.Data.Date, NoHistoryDate),
			orDefault(e.Data.DocumentType, DefaultHistoryType),
			e.Data.DisplayTotal(),
			e.CreatedAt().Format("2006-01-02"),
		})
	}
	table.Render()
	fmt.Fprintln(w, "open <#|id> to view, delete <#|id> to remove, clear to remove all")
}

// Screen writes the surface for the current state
func Screen(w io.Writer, snap workflow.Snapshot, entries []bill.Entry, footer Footer) {
	switch snap.State {
	case workflow.StateIdle:
		Upload(w)
	case workflow.StateScanning:
		Scanning(w, snap)
	case workflow.StateSuccess:
		fmt.Fprintln(w, "Extraction Successful")
		fmt.Fprintln(w)
		if snap.Record != nil {
			Bill(w, snap.Record, footer)
		}
	case workflow.StateError:
		Failure(w, snap.Error)
	case workflow.StateViewingHistory:
		History(w, entries)
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
