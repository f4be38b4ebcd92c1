package notify

import (
	"fmt"
	"strings"

	"lager_lending_tool/db"
	"lager_lending_tool/models"
)

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// FlagCreated builds the admin mail for a new inbox entry.
func FlagCreated(f *models.Flag) (subject, body string) {
	subject = fmt.Sprintf("New flag: %s", f.FlagType)
	var b strings.Builder
	b.WriteString("A new flag was filed:\n\n")
	fmt.Fprintf(&b, "Flag ID: %s\n", f.ID)
	fmt.Fprintf(&b, "Type: %s\n", f.FlagType)
	fmt.Fprintf(&b, "Item ID: %s\n", deref(f.ItemID, "-"))
	fmt.Fprintf(&b, "User ID: %s\n", deref(f.UserID, "-"))
	if f.LoanID != nil {
		fmt.Fprintf(&b, "Loan ID: %s\n", *f.LoanID)
	}
	fmt.Fprintf(&b, "Message: %s\n", f.Message)
	return subject, b.String()
}

// OverdueReport lists every overdue loan found by a sweep.
func OverdueReport(loans []db.LoanView) (subject, body string) {
	subject = fmt.Sprintf("Overdue loans report (%d)", len(loans))
	var b strings.Builder
	b.WriteString("The following loans are overdue:\n\n")
	for _, l := range loans {
		fmt.Fprintf(&b, "- %s (%s) lent to %s, due %s, loan %s\n",
			deref(l.ItemName, l.ItemID),
			deref(l.ItemBarcode, "no barcode"),
			deref(l.UserName, "deleted user"),
			l.DueDate,
			l.ID,
		)
	}
	return subject, b.String()
}
