package remote

import "math"

// Wire types for the registry's read-side resources proxied by the
// gateway. Field names follow the registry wire contract.

type Patient struct {
	ID            string `json:"id"`
	PatientID     string `json:"patientId"`
	Name          string `json:"name"`
	DateOfBirth   string `json:"dateOfBirth"`
	Gender        string `json:"gender"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	WalletAddress string `json:"walletAddress"`
}

type MedicalRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Doctor      string `json:"doctor"`
	Hospital    string `json:"hospital"`
	Description string `json:"description"`
}

// PageInfo is the pagination envelope the registry returns alongside
// patient listings.
type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Stats struct {
	TotalConsents     int `json:"totalConsents"`
	ActiveConsents    int `json:"activeConsents"`
	PendingConsents   int `json:"pendingConsents"`
	TotalPatients     int `json:"totalPatients"`
	TotalRecords      int `json:"totalRecords"`
	TotalTransactions int `json:"totalTransactions"`
}

// ApprovalRate is the share of consents that are active, as a
// percentage rounded to one decimal. Zero when there are no consents.
func (s *Stats) ApprovalRate() float64 {
	return percentage(s.ActiveConsents, s.TotalConsents)
}

// PendingRate is the share of consents still pending, as a percentage
// rounded to one decimal.
func (s *Stats) PendingRate() float64 {
	return percentage(s.PendingConsents, s.TotalConsents)
}

func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

type Transaction struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	From             string `json:"from"`
	BlockchainTxHash string `json:"blockchainTxHash"`
	Timestamp        string `json:"timestamp"`
	Status           string `json:"status"`
}
