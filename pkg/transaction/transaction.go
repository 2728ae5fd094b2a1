package transaction

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownAccount is the group key for records that carry no account name.
const UnknownAccount = "Unknown Account"

// Record is a single bank transaction as returned by the backend.
// Records are immutable once received.
type Record struct {
	// Date is kept exactly as the backend sent it (normally YYYY-MM-DD)
	Date string `json:"date"`

	// Name is the merchant or counterparty label
	Name string `json:"name"`

	// Amount is signed; the currency is implied by the backend
	Amount decimal.Decimal `json:"amount"`

	// Category is an ordered list of labels, e.g. ["Food", "Restaurants"]
	Category []string `json:"category"`

	// AccountName identifies the source account, nil when absent
	AccountName *string `json:"account_name,omitempty"`
}

// Account returns the group key for the record.
func (r Record) Account() string {
	if r.AccountName == nil || *r.AccountName == "" {
		return UnknownAccount
	}
	return *r.AccountName
}

// CategoryPath joins the category labels with sep.
// A nil or empty category yields "".
func (r Record) CategoryPath(sep string) string {
	return strings.Join(r.Category, sep)
}

// DisplayAmount formats the amount with exactly two fraction digits.
func (r Record) DisplayAmount() string {
	return r.Amount.StringFixed(2)
}

// Group is the records of one account, in their original relative order.
type Group struct {
	Account string   `json:"account"`
	Records []Record `json:"transactions"`
}

// GroupByAccount groups records by account name.
// Groups appear in first-seen order and keep insertion order; nothing is sorted.
func GroupByAccount(records []Record) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, rec := range records {
		key := rec.Account()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Account: key})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}

	return groups
}

// Flatten concatenates groups back into a single slice.
func Flatten(groups []Group) []Record {
	var n int
	for _, g := range groups {
		n += len(g.Records)
	}

	out := make([]Record, 0, n)
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}

// StringPtr is a convenience for building records with an account name.
func StringPtr(s string) *string {
	return &s
}
