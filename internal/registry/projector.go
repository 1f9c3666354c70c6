package registry

// StatusFilter selects records by status in a loaded view. FilterAll
// passes everything through.
type StatusFilter string

const (
	FilterAll     StatusFilter = "all"
	FilterPending StatusFilter = StatusFilter(StatusPending)
	FilterActive  StatusFilter = StatusFilter(StatusActive)
	FilterRevoked StatusFilter = StatusFilter(StatusRevoked)
)

// FilterStatus returns the subsequence of records matching filter. Pure:
// the input is never mutated and order is preserved.
func FilterStatus(records []ConsentRecord, filter StatusFilter) []ConsentRecord {
	if filter == "" || filter == FilterAll {
		return copyRecords(records)
	}
	out := make([]ConsentRecord, 0, len(records))
	for _, rec := range records {
		if StatusFilter(rec.Status) == filter {
			out = append(out, rec)
		}
	}
	return out
}

// FilterWallet returns the subsequence of records authored by
// walletAddress. Matching is an exact string comparison, preserving the
// registry's observed behavior; hex-case normalization is deliberately
// not applied. An empty address means no restriction.
func FilterWallet(records []ConsentRecord, walletAddress string) []ConsentRecord {
	if walletAddress == "" {
		return copyRecords(records)
	}
	out := make([]ConsentRecord, 0, len(records))
	for _, rec := range records {
		if rec.WalletAddress == walletAddress {
			out = append(out, rec)
		}
	}
	return out
}

// Project composes the status and wallet filters over a loaded view.
func Project(records []ConsentRecord, filter StatusFilter, walletAddress string) []ConsentRecord {
	return FilterWallet(FilterStatus(records, filter), walletAddress)
}
