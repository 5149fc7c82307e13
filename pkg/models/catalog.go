package models

import "time"

// ProductSpec is one parameter of one product model.
type ProductSpec struct {
	TenantRecord
	ProductModel string `json:"product_model"`
	ParamName    string `json:"param_name"`
	ParamValue   string `json:"param_value"`
	IsCoreParam  bool   `json:"is_core_param"`
}

// BidTemplate is an uploaded document template used to render bids.
type BidTemplate struct {
	TenantRecord
	Name         string `json:"name"`
	FileURL      string `json:"file_url"`
	TemplateType string `json:"template_type"`
}

// QualificationStatus is derived from the expiry date.
type QualificationStatus string

const (
	QualificationValid    QualificationStatus = "valid"
	QualificationExpiring QualificationStatus = "expiring"
	QualificationExpired  QualificationStatus = "expired"
)

// Qualification is a certificate or licence the company holds.
type Qualification struct {
	TenantRecord
	Name         string              `json:"name"`
	Number       string              `json:"number,omitempty"`
	ProductModel string              `json:"product_model,omitempty"`
	Issuer       string              `json:"issuer,omitempty"`
	ExpiryDate   *time.Time          `json:"expiry_date,omitempty"`
	Status       QualificationStatus `json:"status"`
}

// StatusAt computes the qualification status at now. A qualification that
// expires within window is expiring; one without an expiry date never expires.
func (q *Qualification) StatusAt(now time.Time, window time.Duration) QualificationStatus {
	if q.ExpiryDate == nil {
		return QualificationValid
	}
	switch {
	case q.ExpiryDate.Before(now):
		return QualificationExpired
	case q.ExpiryDate.Before(now.Add(window)):
		return QualificationExpiring
	default:
		return QualificationValid
	}
}
