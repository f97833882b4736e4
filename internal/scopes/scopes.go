// Package scopes defines the scope catalog of the OpenBank API. Each scope
// names one banking module a token may reach.
package scopes

import (
	"sort"
	"strings"
)

const (
	Identity        = "identity"
	Income          = "income"
	Payments        = "payments"
	Transactions    = "transactions"
	UserData        = "user-data"
	VirtualAccounts = "virtual-accounts"
)

var descriptions = map[string]string{
	Identity:        "Access to identity verification and management features",
	Income:          "Access to income verification and analysis features",
	Payments:        "Access to payment processing and management features",
	Transactions:    "Access to transaction management and history features",
	UserData:        "Access to user profile and account data features",
	VirtualAccounts: "Access to virtual account creation and management features",
}

// Sets are the default scope bundles offered at project creation.
var Sets = map[string][]string{
	"basic":            {Transactions, UserData},
	"banking_app":      {Transactions, Payments, UserData},
	"fintech_platform": {VirtualAccounts, Transactions, Payments, UserData},
	"identity_service": {Identity, UserData},
	"income_service":   {Income, UserData},
	"full_access":      {Identity, Income, Payments, Transactions, UserData, VirtualAccounts},
}

func All() []string {
	return []string{Identity, Income, Payments, Transactions, UserData, VirtualAccounts}
}

func IsValid(scope string) bool {
	_, ok := descriptions[scope]
	return ok
}

func Description(scope string) string {
	return descriptions[scope]
}

// Parse splits a space-separated scope string, dropping empty segments.
func Parse(s string) []string {
	return strings.Fields(s)
}

func Join(scopes []string) string {
	return strings.Join(scopes, " ")
}

// Intersect returns the scopes present in both sets, sorted for stable
// responses.
func Intersect(a, b []string) []string {
	in := make(map[string]bool, len(b))
	for _, s := range b {
		in[s] = true
	}
	var out []string
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		if in[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	sort.Strings(out)
	return out
}
